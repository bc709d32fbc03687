package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTML 为图片加上懒加载和 no-referrer，为外链加上 nofollow
func EnhanceHTML(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
		s.SetAttr("decoding", "async")
	})

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			rel, _ := s.Attr("rel")
			if !strings.Contains(rel, "nofollow") {
				s.SetAttr("rel", strings.TrimSpace(rel+" nofollow"))
			}
		}
	})

	// goquery 会补全 html/body，这里只要 body 内容
	html, _ := doc.Find("body").Html()
	if html == "" {
		html, _ = doc.Html()
	}
	return html
}
