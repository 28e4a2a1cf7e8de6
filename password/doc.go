// Package password implements password hashing, verification and strength
// policy for authcore.
//
// # Output format
//
// Argon2id hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes use the standard modular crypt format ($2a$, $2b$, $2y$).
// [Multi] verifies either format and reports, through [Multi.NeedsUpgrade],
// when a stored hash should be replaced on the next successful login.
//
// # Concurrency
//
// Hashing is CPU bound. [Pool] bounds the number of concurrent hash and
// verify calls so a burst of logins cannot starve unrelated requests.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
