package translation

// HeaderComment opens every generated artifact so regenerated files are
// recognizable and hand edits are discouraged.
func HeaderComment() string {
	return "/*\n" +
		" * Code generated by the parlift compiler. Manual changes will be\n" +
		" * overwritten on the next compilation.\n" +
		" */\n"
}

// MkHeaderComment is the build-script flavor of the generated-file header.
func MkHeaderComment() string {
	return "# Code generated by the parlift compiler. Manual changes will be\n" +
		"# overwritten on the next compilation.\n"
}
