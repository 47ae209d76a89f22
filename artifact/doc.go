// Package artifact stores the content a campaign run produced, one named
// blob per published output key, grouped by session.
//
// InMemoryStore suits tests and single-process use. DirStore writes plain
// files below a root directory so generated copy can be reviewed or handed
// on after the process exits:
//
//	store := artifact.NewDirStore("out")
//	names, err := artifact.Export(store, "cli", root.OutputKeys(), outcome.State, outcome.Result.Text)
package artifact
