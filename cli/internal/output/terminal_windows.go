//go:build windows

package output

import (
	"os"

	"golang.org/x/sys/windows"
)

// terminalWidth reads the visible console window width
func terminalWidth() (int, bool) {
	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(windows.Handle(os.Stdout.Fd()), &info); err != nil {
		return 0, false
	}
	width := int(info.Window.Right - info.Window.Left + 1)
	return width, width > 0
}
