package common

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

type CommonFlags struct {
	Profile      string `flag:"profile" help:"profile name to use"`
	ProfileStore string `flag:"profile-store" help:"path to profile store file"`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default common flag values.
//
// The default profile name is taken from the first line of a
// ".recmetaprofile" file, searched from `from` upwards. When none is
// found, the absolute path of `from` is used as the profile name.
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := commonFlagDetection{
		home: "",
	}
	for _, o := range opt {
		detparam = *o(&detparam)
	}

	home := detparam.home
	if home == "" {
		_home, err := os.UserHomeDir()
		if err != nil {
			_home = ""
		}
		home = _home
	}

	if _from, err := filepath.Abs(from); err == nil {
		from = _from
	}

	profile := from

	for searchpath := from; ; {
		candidate := path.Join(searchpath, ".recmetaprofile")
		if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
			_profile, err := os.ReadFile(candidate)
			if err != nil {
				return CommonFlags{}, err
			}
			if p := strings.Split(string(_profile), "\n"); 0 < len(p) {
				profile = strings.TrimSpace(p[0])
			}
			break
		}

		next := path.Dir(searchpath)
		if next == searchpath {
			break
		}
		searchpath = next
	}

	return CommonFlags{
		Profile:      profile,
		ProfileStore: path.Join(home, ".recmeta", "profile"),
	}, nil
}
