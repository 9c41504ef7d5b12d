package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultEndpoint is the suite endpoint every tool posts to.
	DefaultEndpoint = "http://localhost/api.php"
	// GRCTimeout bounds a full GRC assessment request.
	GRCTimeout = 5 * time.Minute
	// DefaultToolTimeout bounds every other tool request.
	DefaultToolTimeout = 2 * time.Minute
	// MaxResponseBytes caps how much of a backend response body is read.
	MaxResponseBytes = 16 << 20
	// MaxCaptureBytes caps the size of an uploaded capture file.
	MaxCaptureBytes = 100 << 20
)

const (
	// DefaultCanvasWidth and DefaultCanvasHeight size the diagram canvas in pixels.
	DefaultCanvasWidth  = 1200
	DefaultCanvasHeight = 800
)
