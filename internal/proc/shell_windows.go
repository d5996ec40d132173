//go:build windows

package proc

func shellInvocation(line string) (string, []string) {
	return "cmd", []string{"/C", line}
}
