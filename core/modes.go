package core

// File type bits: Getattr reports S_IFDIR for the synthetic root directory
// (RootDirMode) and returns a stored file's mode as it was set; the host
// adapter adds S_IFREG to every stored file's mode. Trimmed to the two type bits
// this format actually needs — it has no devices, sockets, fifos, or
// symlinks.
const (
	ModeDir uint32 = 0o040000
	ModeReg uint32 = 0o100000
)

// RootDirMode is the mode Getattr("/") reports.
const RootDirMode = ModeDir | 0o755
