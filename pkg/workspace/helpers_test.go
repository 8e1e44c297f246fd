package workspace

// withHomeDir swaps the home directory lookup until the returned func runs.
func withHomeDir(fn func() (string, error)) (restore func()) {
	prev := userHomeDir
	userHomeDir = fn
	return func() { userHomeDir = prev }
}

// withGOOS pretends to run on another platform until restore runs.
func withGOOS(goos string) (restore func()) {
	prev := getGOOS
	getGOOS = func() string { return goos }
	return func() { getGOOS = prev }
}
