// Package command defines the pjctl commands.
//
// Commands share one configured page store, opened lazily by the first
// command that needs it and closed when the application exits:
//
//	pjctl page import --db main.db ./main.db
//	pjctl page list --db main.db --hash blake2b
//	pjctl journal build --db main.db --pages 1,3 ./main.db-journal
//	pjctl journal verify ./main.db-journal
package command
