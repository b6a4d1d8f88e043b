// Package spawn runs the command given after "--" and watches it, so
// the monitor can tag its exit and quit once the rows are final.
package spawn

import (
	"os"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"
)

// Child is a command spawned by the monitor itself.
type Child struct {
	cmd *exec.Cmd
	log *logrus.Entry

	mu   sync.Mutex
	done bool

	onExit func()
}

// Start launches args as a child process wired to the terminal. The
// child is collected by a background waiter as soon as it exits, so it
// never lingers as a zombie beyond one tick; onExit runs from the
// waiter once it has been collected.
func Start(args []string, log *logrus.Entry, onExit func()) (*Child, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	c := &Child{cmd: cmd, log: log, onExit: onExit}
	go c.wait()
	return c, nil
}

func (c *Child) wait() {
	err := c.cmd.Wait()
	c.log.WithError(err).WithField("pid", c.PID()).Debug("spawned command exited")

	c.mu.Lock()
	c.done = true
	c.mu.Unlock()

	if c.onExit != nil {
		c.onExit()
	}
}

// PID returns the process id of the child.
func (c *Child) PID() int {
	return c.cmd.Process.Pid
}

// Done reports whether the child has exited and been collected.
func (c *Child) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Owns reports whether tid belongs to the spawned child. The sampler
// calls it from its zombie branch; collection itself is the waiter's
// job.
func (c *Child) Owns(tid int) bool {
	return c != nil && tid == c.PID()
}
