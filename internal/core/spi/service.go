// Package spi implements the shared service object plugins reach through the
// handshake record.
package spi

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"lebinkproxy.dev/proxy/internal/core/domain"
	"lebinkproxy.dev/proxy/internal/core/hooks"
	"lebinkproxy.dev/proxy/internal/core/scanner"
)

// Console is the physical console shared by every plugin
type Console interface {
	Open() error
	Close() error
}

// PatternFinder resolves a pattern in the host's main module
type PatternFinder interface {
	FindString(pattern string) (uintptr, error)
}

// HookInstaller is the name-keyed hook table
type HookInstaller interface {
	Install(name string, target, detour uintptr) (uintptr, error)
	Uninstall(name string) error
}

var (
	_ PatternFinder = (*scanner.Scanner)(nil)
	_ HookInstaller = (*hooks.Manager)(nil)
)

// Service is the object handed to plugins. Each operation category has its
// own lock so a slow hook install never blocks a version query.
type Service struct {
	host    domain.HostContext
	finder  PatternFinder
	hooks   HookInstaller
	console Console
	logger  hclog.Logger

	patternMu sync.Mutex
	hookMu    sync.Mutex

	consoleMu   sync.Mutex
	consoleRefs int
}

// NewService creates the shared service for the given host
func NewService(host domain.HostContext, finder PatternFinder, hookTable HookInstaller, console Console, logger hclog.Logger) *Service {
	return &Service{
		host:    host,
		finder:  finder,
		hooks:   hookTable,
		console: console,
		logger:  logger.Named("spi"),
	}
}

// Version returns the contract version this host implements
func (s *Service) Version() uint32 {
	return domain.ServiceVersion
}

// BuildMode returns DEBUG or RELEASE
func (s *Service) BuildMode() string {
	return domain.BuildMode
}

// IsRelease reports whether the host was built in release mode
func (s *Service) IsRelease() bool {
	return domain.IsRelease()
}

// HostGame returns the resolved target
func (s *Service) HostGame() domain.Game {
	return s.host.Game()
}

// FindPattern searches the main module for a pattern in hex notation
func (s *Service) FindPattern(pattern string) (uintptr, error) {
	s.patternMu.Lock()
	defer s.patternMu.Unlock()

	addr, err := s.finder.FindString(pattern)
	if err != nil {
		s.logger.Debug("pattern search failed", "pattern", pattern, "error", err)
		return 0, err
	}
	return addr, nil
}

// InstallHook detours target under name and returns the original
func (s *Service) InstallHook(name string, target, detour uintptr) (uintptr, error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	original, err := s.hooks.Install(name, target, detour)
	if err != nil {
		s.logger.Warn("hook install rejected", "name", name, "error", err)
		return 0, err
	}
	s.logger.Info("installed hook", "name", name, "target", fmt.Sprintf("%#x", target))
	return original, nil
}

// UninstallHook removes a hook by name
func (s *Service) UninstallHook(name string) error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	if err := s.hooks.Uninstall(name); err != nil {
		s.logger.Warn("hook uninstall rejected", "name", name, "error", err)
		return err
	}
	s.logger.Info("uninstalled hook", "name", name)
	return nil
}

// OpenSharedConsole opens the console on the first reference
func (s *Service) OpenSharedConsole() error {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()

	if s.consoleRefs == 0 {
		if err := s.console.Open(); err != nil {
			return fmt.Errorf("open console: %w", err)
		}
	}
	s.consoleRefs++
	return nil
}

// CloseSharedConsole closes the console when the last reference goes away.
// Extra closes are ignored.
func (s *Service) CloseSharedConsole() error {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()

	switch s.consoleRefs {
	case 0:
		return nil
	case 1:
		if err := s.console.Close(); err != nil {
			return fmt.Errorf("close console: %w", err)
		}
	}
	s.consoleRefs--
	return nil
}

// ConsoleRefs returns the current number of console references
func (s *Service) ConsoleRefs() int {
	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	return s.consoleRefs
}
