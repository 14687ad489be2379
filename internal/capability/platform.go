package capability

import (
	"regexp"
	"strconv"
	"strings"
)

var osVersionPatterns = map[string]*regexp.Regexp{
	"ios":     regexp.MustCompile(`(?:iphone os|cpu os) (\d+[_.]\d+)`),
	"android": regexp.MustCompile(`android (\d+(?:\.\d+)?)`),
	"macos":   regexp.MustCompile(`mac os x (\d+[_.]\d+)`),
	"windows": regexp.MustCompile(`windows nt (\d+\.\d+)`),
}

// classifyPlatform applies string-pattern heuristics to the host
// platform identifier. Unmatched patterns fall back to "unknown" rather
// than failing.
func classifyPlatform(platform string) PlatformInfo {
	info := PlatformInfo{
		Class:   DeviceUnknown,
		OS:      "unknown",
		Browser: "unknown",
	}

	id := strings.ToLower(strings.TrimSpace(platform))
	if id == "" {
		return info
	}

	switch {
	case strings.Contains(id, "ipad"):
		info.OS = "ios"
		info.Class = DeviceTablet
	case strings.Contains(id, "iphone"), strings.Contains(id, "ipod"):
		info.OS = "ios"
		info.Class = DeviceMobile
	case strings.Contains(id, "android"):
		info.OS = "android"
		if strings.Contains(id, "mobile") {
			info.Class = DeviceMobile
		} else {
			info.Class = DeviceTablet
		}
	case strings.Contains(id, "windows"):
		info.OS = "windows"
		info.Class = DeviceDesktop
	case strings.Contains(id, "mac os"), strings.Contains(id, "macintosh"):
		info.OS = "macos"
		info.Class = DeviceDesktop
	case strings.Contains(id, "linux"), strings.Contains(id, "x11"):
		info.OS = "linux"
		info.Class = DeviceDesktop
	}

	if re, ok := osVersionPatterns[info.OS]; ok {
		if m := re.FindStringSubmatch(id); m != nil {
			info.OSVersion = strings.ReplaceAll(m[1], "_", ".")
		}
	}

	switch {
	case strings.Contains(id, "edg/"):
		info.Browser = "edge"
	case strings.Contains(id, "opr/"), strings.Contains(id, "opera"):
		info.Browser = "opera"
	case strings.Contains(id, "chrome"), strings.Contains(id, "crios"):
		info.Browser = "chrome"
	case strings.Contains(id, "firefox"), strings.Contains(id, "fxios"):
		info.Browser = "firefox"
	case strings.Contains(id, "safari"):
		info.Browser = "safari"
	}

	return info
}

// IsLegacyOS reports whether the platform is a known older OS release
// that cannot sustain high frame rates.
func IsLegacyOS(info PlatformInfo) bool {
	if info.OSVersion == "" {
		return false
	}

	raw := info.OSVersion
	if i := strings.IndexAny(raw, "._"); i > 0 {
		raw = raw[:i]
	}

	major, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}

	switch info.OS {
	case "ios":
		return major < 13
	case "android":
		return major < 9
	default:
		return false
	}
}
