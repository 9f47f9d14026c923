package snapchat

import (
	"encoding/json"
	"fmt"
)

func testSnap(id, url string, mediaType int, ts int64) map[string]interface{} {
	return map[string]interface{}{
		"snapId":         map[string]interface{}{"value": id},
		"snapUrls":       map[string]interface{}{"mediaUrl": url},
		"snapMediaType":  mediaType,
		"timestampInSec": map[string]interface{}{"value": fmt.Sprint(ts)},
	}
}

// testPageProps is a profile with a three chunk story, a single story snap,
// one titled and one untitled curated highlight and a spotlight highlight.
func testPageProps(base string) map[string]interface{} {
	return map[string]interface{}{
		"userProfile": map[string]interface{}{
			"$case": "publicProfileInfo",
			"publicProfileInfo": map[string]interface{}{
				"username":           "alice",
				"title":              "Alice A",
				"squareHeroImageUrl": base + "/media/hero.jpg",
			},
		},
		"linkPreview": map[string]interface{}{
			"facebookImage": map[string]interface{}{"url": base + "/media/avatar.jpg"},
		},
		"story": map[string]interface{}{
			"snapList": []interface{}{
				testSnap("s1", base+"/media/s1", 1, 1700000000),
				testSnap("s2", base+"/media/s2", 1, 1700000000),
				testSnap("s3", base+"/media/s3", 1, 1700000000),
				testSnap("s4", base+"/media/s4", 0, 1700000100),
				testSnap("s5", "", 0, 1700000200),
			},
		},
		"curatedHighlights": []interface{}{
			map[string]interface{}{
				"storyTitle": map[string]interface{}{"value": "Trips"},
				"snapList": []interface{}{
					testSnap("c1", base+"/media/c1", 0, 1690000000),
					testSnap("c2", base+"/media/c2", 1, 1690000010),
				},
			},
			map[string]interface{}{
				"storyTitle": map[string]interface{}{"value": ""},
				"snapList": []interface{}{
					testSnap("c3", base+"/media/c3", 0, 1690000020),
				},
			},
		},
		"spotlightHighlights": []interface{}{
			map[string]interface{}{
				"snapList": []interface{}{
					testSnap("p1", base+"/media/p1", 1, 1680000000),
				},
			},
		},
	}
}

func testPage(props map[string]interface{}) string {
	data, err := json.Marshal(map[string]interface{}{
		"props": map[string]interface{}{"pageProps": props},
	})
	if err != nil {
		panic(err)
	}
	return `<html><head></head><body><script id="__NEXT_DATA__" type="application/json">` +
		string(data) + `</script></body></html>`
}
