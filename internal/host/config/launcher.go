package config

import (
	"fmt"

	"github.com/yndnr/rosiels-go/internal/launcher"
)

// Config returns the launcher configuration of the section.
func (s LauncherSection) Config() launcher.Config {
	return launcher.Config{
		RuntimeEnv:    s.RuntimeEnv,
		RuntimeName:   s.RuntimeName,
		EntryResource: s.EntryResource,
		StopTimeout:   s.StopTimeout,
	}
}

// Resolver returns the resource resolver rooted at ResourceRoot, or at the
// directory of the running executable when ResourceRoot is empty.
func (s LauncherSection) Resolver() (launcher.DirResolver, error) {
	if s.ResourceRoot != "" {
		return launcher.DirResolver{Root: s.ResourceRoot}, nil
	}
	root, err := launcher.ExecutableRoot()
	if err != nil {
		return launcher.DirResolver{}, fmt.Errorf("locate installation directory: %w", err)
	}
	return launcher.DirResolver{Root: root}, nil
}

// NewLauncher builds the launcher described by the section.
func (s LauncherSection) NewLauncher(diag launcher.Diagnostics, opts ...launcher.Option) (*launcher.Launcher, error) {
	resolver, err := s.Resolver()
	if err != nil {
		return nil, err
	}
	return launcher.New(s.Config(), resolver, diag, opts...), nil
}
