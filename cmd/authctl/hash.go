package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrEthical07/authcore/password"
	"github.com/spf13/cobra"
)

func newHashCmd() *cobra.Command {
	params := password.DefaultParams()

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a principal secret read from stdin",
		Long: `Read one secret per line from stdin and print its Argon2id PHC hash, for
seeding credential stores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := password.NewHasher(params)
			if err != nil {
				return err
			}
			return hashLines(cmd.InOrStdin(), cmd.OutOrStdout(), h)
		},
	}
	cmd.Flags().Uint32Var(&params.MemoryKiB, "memory", params.MemoryKiB, "memory cost in KiB")
	cmd.Flags().Uint32Var(&params.Passes, "passes", params.Passes, "number of passes")
	cmd.Flags().Uint8Var(&params.Lanes, "lanes", params.Lanes, "degree of parallelism")
	return cmd
}

func hashLines(in io.Reader, out io.Writer, h *password.Hasher) error {
	sc := bufio.NewScanner(in)
	n := 0
	for sc.Scan() {
		secret := strings.TrimRight(sc.Text(), "\r")
		if secret == "" {
			continue
		}
		encoded, err := h.Hash(secret)
		if err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
		fmt.Fprintln(out, encoded)
		n++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if n == 0 {
		return errors.New("no secret on stdin")
	}
	return nil
}
