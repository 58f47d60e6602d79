// Package patchtx applies batches of unified-diff patches and full-file
// replacements to a project tree as all-or-nothing transactions.
//
// Every patch is parsed and dry-run against the current files first; hunks
// are located at their declared line, corrected for drift from earlier hunks,
// and searched within a small window when the file has shifted. Only when the
// whole batch validates are files snapshotted and written, each through a temp
// file and a rename. An optional verification command then decides between
// commit and a byte-exact rollback:
//
//	srv, _ := patchtx.New("/path/to/project")
//	result, err := srv.Apply(ctx, &model.Request{
//		Changes: []*model.Change{model.NewPatchChange("main.go", diffText)},
//		Verify:  &model.Verification{Command: "go build ./..."},
//	})
//
// Failures are reported in the result with enough detail (hunk, line,
// expected and found text, exit code and output) to regenerate a patch. The
// returned error is reserved for a rollback that could not restore the tree.
package patchtx
