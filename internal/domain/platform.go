package domain

import "strings"

// Platform identifies the video hosting platform a URL belongs to.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformOther     Platform = "other"
)

func (p Platform) String() string {
	return string(p)
}

// ResolvePlatform classifies a URL by hostname. Pure function, no I/O.
func ResolvePlatform(url string) Platform {
	lower := strings.ToLower(url)

	switch {
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return PlatformYouTube
	case strings.Contains(lower, "instagram.com"):
		return PlatformInstagram
	case strings.Contains(lower, "facebook.com"), strings.Contains(lower, "fb.watch"):
		return PlatformFacebook
	default:
		return PlatformOther
	}
}
