//go:build !lebinkdebug

package domain

// BuildMode is selected with the lebinkdebug build tag
const BuildMode = BuildModeRelease
