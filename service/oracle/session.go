package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/patchtx/internal/clock"
	"github.com/viant/patchtx/model"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"
)

// Session runs verifications in a long-lived gosh shell, locally or on a
// remote host over ssh. Each command runs in a subshell so `exit` does not
// end the session.
type Session struct {
	hostURL     string
	credentials string
	dir         string
	env         map[string]string
	service     *gosh.Service
	mux         sync.Mutex
}

// SessionOption customises a Session.
type SessionOption func(s *Session)

// WithHost sets the target host URL, e.g. ssh://build:22; localhost by default.
func WithHost(hostURL, credentials string) SessionOption {
	return func(s *Session) {
		s.hostURL = hostURL
		s.credentials = credentials
	}
}

// WithEnv sets environment variables for the session shell.
func WithEnv(env map[string]string) SessionOption {
	return func(s *Session) { s.env = env }
}

// WithDir sets the directory relative workdirs resolve against.
func WithDir(dir string) SessionOption {
	return func(s *Session) { s.dir = dir }
}

// Run implements Oracle.
func (s *Session) Run(ctx context.Context, verification *model.Verification) (*Result, error) {
	if !verification.Enabled() {
		return &Result{}, nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()

	if workdir := s.workdir(verification.Workdir); workdir != "" {
		output, status, err := s.service.Run(ctx, "cd "+quote(workdir))
		if err != nil || status != 0 {
			result := &Result{Output: output, ExitCode: status}
			if status == 0 {
				result.ExitCode = -1
			}
			if err != nil {
				return result, fmt.Errorf("failed to change directory to %v: %w", workdir, err)
			}
			return result, fmt.Errorf("failed to change directory to %v: exit status %d", workdir, status)
		}
	}
	timeout := Timeout(verification)
	started := clock.Now()
	output, status, err := s.service.Run(ctx, "("+verification.Command+")", runner.WithTimeout(int(timeout.Milliseconds())))
	result := &Result{Output: output, ExitCode: status, Elapsed: clock.Since(started)}
	if result.Elapsed > timeout {
		result.TimedOut = true
		result.ExitCode = -1
		result.Output += fmt.Sprintf("\ncommand timed out after %s", timeout)
		return result, nil
	}
	if err != nil && status == 0 {
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run verification %q: %w", verification.Command, err)
	}
	return result, nil
}

func (s *Session) workdir(workdir string) string {
	switch {
	case workdir == "":
		return s.dir
	case strings.HasPrefix(workdir, "/") || s.dir == "":
		return workdir
	default:
		return url.Join(s.dir, workdir)
	}
}

// Close releases the underlying shell.
func (s *Session) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.service == nil {
		return nil
	}
	err := s.service.Close()
	s.service = nil
	return err
}

// NewSession starts a gosh shell for verification runs.
func NewSession(ctx context.Context, options ...SessionOption) (*Session, error) {
	ret := &Session{hostURL: "localhost"}
	for _, option := range options {
		option(ret)
	}
	var envOptions []runner.Option
	if len(ret.env) > 0 {
		envOptions = append(envOptions, runner.WithEnvironment(ret.env))
	}
	var err error
	host := ret.hostURL
	if strings.Contains(host, "://") {
		host = url.Host(host)
	}
	if host == "" || strings.HasPrefix(host, "localhost") {
		ret.service, err = gosh.New(ctx, local.New(envOptions...))
	} else {
		var config *ssh.ClientConfig
		if config, err = sshConfig(ctx, ret.credentials); err != nil {
			return nil, fmt.Errorf("failed to get SSH config: %w", err)
		}
		if !strings.Contains(host, ":") {
			host += ":22"
		}
		ret.service, err = gosh.New(ctx, rssh.New(host, config, envOptions...))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start verification session: %w", err)
	}
	return ret, nil
}

func sshConfig(ctx context.Context, credentials string) (*ssh.ClientConfig, error) {
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := secret.New().GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

var _ Oracle = (*Session)(nil)
