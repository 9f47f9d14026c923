package snapchat

import (
	"encoding/json"
	"strconv"
	"strings"
)

// nextData is the subset of the embedded page state that is used
type nextData struct {
	Props struct {
		PageProps pageProps `json:"pageProps"`
	} `json:"props"`
}

type pageProps struct {
	UserProfile         map[string]json.RawMessage `json:"userProfile"`
	Story               *storyList                 `json:"story"`
	CuratedHighlights   []highlight                `json:"curatedHighlights"`
	SpotlightHighlights []highlight                `json:"spotlightHighlights"`
	LinkPreview         struct {
		FacebookImage struct {
			URL string `json:"url"`
		} `json:"facebookImage"`
	} `json:"linkPreview"`
}

type storyList struct {
	SnapList []json.RawMessage `json:"snapList"`
}

type highlight struct {
	StoryTitle struct {
		Value string `json:"value"`
	} `json:"storyTitle"`
	SnapList []json.RawMessage `json:"snapList"`
}

type snap struct {
	SnapID struct {
		Value string `json:"value"`
	} `json:"snapId"`
	SnapURLs struct {
		MediaURL string `json:"mediaUrl"`
	} `json:"snapUrls"`
	SnapMediaType  int `json:"snapMediaType"`
	TimestampInSec struct {
		Value flexInt `json:"value"`
	} `json:"timestampInSec"`
}

type userProfile struct {
	Username           string `json:"username"`
	DisplayName        string `json:"displayName"`
	Title              string `json:"title"`
	SquareHeroImageURL string `json:"squareHeroImageUrl"`
}

// flexInt accepts both JSON numbers and numeric strings; the service sends
// timestamps as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
