// Package password hashes principal secrets with Argon2id for
// [authcore.CredentialStore] implementations.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// A stored hash carries its own parameters, so raising [Params] never breaks
// existing records; [Hasher.Verify] reports when a hash should be replaced on
// the next successful login. The package never logs or stores secrets.
package password
