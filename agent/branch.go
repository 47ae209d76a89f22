package agent

// buildBranchPath composes the branch label of a parallel child. If parent
// is empty it returns child; otherwise parent + "." + child.
func buildBranchPath(parent, child string) string {
	if parent == "" {
		return child
	}

	if child == "" {
		return parent
	}

	return parent + "." + child
}
