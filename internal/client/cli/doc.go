// Package cli implements tandemctl, the command-line client of the Tandem
// coordinator.
//
// Commands
//
//	join        poll the matchmaking queue until paired
//	cancel      leave the matchmaking queue
//	leave       end an ad-hoc session
//	partner     check whether the partner is still in the room
//	book        book a scheduled session (idempotent with --key)
//	transition  move a scheduled session to another status
//	token       mint a development access token
//	config      show or edit ~/.config/tandem/cli.toml
//	version     print build information
//
// Configuration is resolved by the config package; see config.Load.
package cli
