package validate

import "fmt"

// Text field length limits shared by every handler.
const (
	MaxUsernameLength    = 50
	MaxFullnameLength    = 100
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxCommentLength     = 2000
	MaxTweetLength       = 500
	MaxPlaylistNameLength        = 100
	MaxPlaylistDescriptionLength = 1000
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Username(s string) string    { return checkLen(s, MaxUsernameLength, "username") }
func Fullname(s string) string    { return checkLen(s, MaxFullnameLength, "fullname") }
func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }
func Comment(s string) string     { return checkLen(s, MaxCommentLength, "comment") }
func Tweet(s string) string       { return checkLen(s, MaxTweetLength, "tweet") }
func PlaylistName(s string) string {
	return checkLen(s, MaxPlaylistNameLength, "playlist name")
}
func PlaylistDescription(s string) string {
	return checkLen(s, MaxPlaylistDescriptionLength, "playlist description")
}
