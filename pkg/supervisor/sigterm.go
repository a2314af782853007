package supervisor

import "syscall"

func sigterm() syscall.Signal {
	return syscall.SIGTERM
}
