package lockdown

// topWindow is one visible top-level window from a platform enumeration.
type topWindow struct {
	handle uintptr
	pid    int
	image  string
}

// pickOwnedWindow selects the window belonging to the launched surface. An
// exact PID match wins; otherwise the first window with a matching executable
// name is taken, since multi-process browsers often parent their window to a
// child of the launched PID. Windows owned by other processes never match.
func pickOwnedWindow(wins []topWindow, image string, pid int) (uintptr, bool) {
	var byImage uintptr
	for _, w := range wins {
		if w.pid == pid {
			return w.handle, true
		}
		if byImage == 0 && w.image == image {
			byImage = w.handle
		}
	}
	if byImage != 0 {
		return byImage, true
	}
	return 0, false
}
