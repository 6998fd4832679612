// Package cli provides the interactive LinkVault command-line client.
//
// It wires configuration, the local session store, the API client and a
// line-oriented REPL. A saved session is restored on start, so a user who
// logged in earlier goes straight to the file commands.
//
// Commands: register, login, logout, upload, list, delete, share, revoke,
// links, ingest, quota, plans, buy, payments, exit.
package cli
