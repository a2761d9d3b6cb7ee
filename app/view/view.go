// Package view derives display fields from canonical posts. Nothing here feeds
// back into the canonical model.
package view

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/kingsfeeds/app/feed"
)

const (
	ExcerptLength = 150
	InvalidDate   = "Invalid Date"
	dateLayout    = "January 2, 2006"
)

var (
	imgSrcPattern = regexp.MustCompile(`(?i)<img[^>]+?src="([^">]+)"`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	// \s in RE2 is ASCII only; add Unicode separators and BOM.
	spacePattern = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)

	contentPolicy = bluemonday.UGCPolicy()
)

type PostView struct {
	GUID        string `json:"guid"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Excerpt     string `json:"excerpt"`
	Date        string `json:"date"`
	PublishedAt string `json:"pubDate"`
	ImageURL    string `json:"image_url,omitempty"`
	ContentHTML string `json:"content_html,omitempty"`
}

type FeedView struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	Posts       []PostView `json:"posts"`
}

func NewFeedView(result *feed.FeedResult) FeedView {
	v := FeedView{
		Title:       result.Feed.Title,
		Description: result.Feed.Description,
		Link:        result.Feed.Link,
		Posts:       make([]PostView, 0, len(result.Items)),
	}
	for _, post := range result.Items {
		v.Posts = append(v.Posts, NewPostView(post))
	}
	return v
}

func NewPostView(post feed.Post) PostView {
	imageURL := post.Thumbnail
	if imageURL == "" {
		imageURL = ExtractImage(post.Content)
	}

	return PostView{
		GUID:        post.GUID,
		Title:       post.Title,
		Link:        post.Link,
		Excerpt:     Excerpt(post.Description, post.Content),
		Date:        FormatDate(post.PublishedAt),
		PublishedAt: post.PublishedAt,
		ImageURL:    imageURL,
		ContentHTML: SafeContent(post.Content),
	}
}

// ExtractImage returns the src of the first <img> tag in content, or "".
func ExtractImage(content string) string {
	match := imgSrcPattern.FindStringSubmatch(content)
	if match == nil {
		return ""
	}
	return match[1]
}

// Excerpt prefers description over content, strips tags, collapses
// whitespace and truncates to ExcerptLength characters plus "...".
// The text is NFC-normalized before counting, so a decomposed "e\u0301"
// comes back as a single "é" and counts as one character. The browser
// client never normalized and counted code units instead.
func Excerpt(description, content string) string {
	text := description
	if text == "" {
		text = content
	}

	text = tagPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = norm.NFC.String(text)

	if utf8.RuneCountInString(text) > ExcerptLength {
		runes := []rune(text)
		return string(runes[:ExcerptLength]) + "..."
	}
	return text
}

// FormatDate renders a long calendar date in the local zone, or "Invalid Date"
// when the text cannot be parsed.
func FormatDate(value string) string {
	t, err := dateparse.ParseLocal(strings.TrimSpace(value))
	if err != nil || value == "" {
		return InvalidDate
	}
	return t.In(time.Local).Format(dateLayout)
}

// SafeContent sanitizes post HTML for direct rendering.
func SafeContent(content string) string {
	if content == "" {
		return ""
	}
	return contentPolicy.Sanitize(content)
}
