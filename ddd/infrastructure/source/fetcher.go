package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/gateway"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

const (
	maxPageBytes     = 5 << 20
	minContentLength = 100
	connectTimeout   = 10 * time.Second
)

var (
	titleSelectors     = []string{"h1.sermon-title", "h1.entry-title", "h1.post-title", ".sermon-header h1", "article h1", "h1", "title"}
	contentSelectors   = []string{".sermon-content", ".entry-content", ".post-content", "article .content", ".main-content", "main", ".content"}
	scriptureSelectors = []string{".scripture", ".bible-verse", ".verse", ".reference"}
	pastorSelectors    = []string{".pastor", ".author", ".speaker", ".preacher"}
	churchSelectors    = []string{".church-name", ".site-title", ".organization"}

	scriptureShape  = regexp.MustCompile(`\d*\s*[가-힣A-Za-z]+\s+\d+`)
	scriptureInText = regexp.MustCompile(`(요한복음|마태복음|마가복음|누가복음|로마서|고린도전서|고린도후서|갈라디아서|에베소서|빌립보서|골로새서|데살로니가전서|데살로니가후서|디모데전서|디모데후서|디도서|빌레몬서|히브리서|야고보서|베드로전서|베드로후서|요한일서|요한이서|요한삼서|유다서|요한계시록|창세기|출애굽기|레위기|민수기|신명기|여호수아|사사기|룻기|사무엘상|사무엘하|열왕기상|열왕기하|역대상|역대하|에스라|느헤미야|에스더|욥기|시편|잠언|전도서|아가|이사야|예레미야|예레미야애가|에스겔|다니엘|호세아|요엘|아모스|오바댜|요나|미가|나훔|하박국|스바냐|학개|스가랴|말라기)\s+\d+:\d+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	hostPrefixStrip = regexp.MustCompile(`^(www\.|m\.)`)
)

// PageFetcher 抓取讲道网页并抽取内容
type PageFetcher struct {
	client    *http.Client
	userAgent string
}

func NewPageFetcher(cfg config.BatchConfig) *PageFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	return &PageFetcher{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		userAgent: cfg.UserAgent,
	}
}

// WithHTTPClient 替换 HTTP 客户端
func (f *PageFetcher) WithHTTPClient(c *http.Client) *PageFetcher {
	f.client = c
	return f
}

var _ gateway.SourceFetcher = (*PageFetcher)(nil)

func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (vo.SermonContent, error) {
	const op = "fetch sermon"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return vo.SermonContent{}, entity.NewValidationError(op, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return vo.SermonContent{}, entity.NewTransientError(op, fmt.Errorf("connection to source failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return vo.SermonContent{}, entity.Errorf(entity.KindTransientExternal, op, "source returned %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return vo.SermonContent{}, entity.Errorf(entity.KindPermanentExternal, op, "source returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "text/html" && mt != "application/xhtml+xml" {
			return vo.SermonContent{}, entity.Errorf(entity.KindPermanentExternal, op, "source is %s, not a web page", mt)
		}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return vo.SermonContent{}, entity.NewPermanentError(op, fmt.Errorf("parse page: %w", err))
	}
	return Extract(doc, rawURL)
}

// Extract 按选择器优先级抽取标题、正文、经文、牧师和教会
func Extract(doc *goquery.Document, rawURL string) (vo.SermonContent, error) {
	title := extractTitle(doc, rawURL)
	content := extractContent(doc)
	if title == "" || content == "" {
		return vo.SermonContent{}, entity.Errorf(entity.KindValidation, "extract sermon", "insufficient sermon content at %s", rawURL)
	}
	s := vo.NewSermonContent(rawURL, title, extractScripture(doc), extractPastor(doc), extractChurch(doc, rawURL), content)
	logger.Debug("Sermon extracted", map[string]interface{}{"url": rawURL, "title": s.Title, "scripture": s.Scripture})
	return s, nil
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(sel.Text(), " "))
}

func firstText(doc *goquery.Document, selectors []string, accept func(string) bool) string {
	for _, s := range selectors {
		t := text(doc.Find(s).First())
		if t != "" && accept(t) {
			return t
		}
	}
	return ""
}

func extractTitle(doc *goquery.Document, rawURL string) string {
	if t := firstText(doc, titleSelectors, func(s string) bool { return len([]rune(s)) > 5 }); t != "" {
		return t
	}
	if t := text(doc.Find("title").First()); t != "" {
		return t
	}
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return "Sermon from " + u.Hostname()
	}
	return ""
}

func extractContent(doc *goquery.Document) string {
	for _, s := range contentSelectors {
		el := doc.Find(s).First().Clone()
		el.Find("script, style").Remove()
		if t := text(el); len([]rune(t)) > minContentLength {
			return t
		}
	}
	body := doc.Find("body").First().Clone()
	body.Find("script, style, nav, footer, header, aside").Remove()
	if t := text(body); len([]rune(t)) > minContentLength {
		return t
	}
	return ""
}

func extractScripture(doc *goquery.Document) string {
	if t := firstText(doc, scriptureSelectors, scriptureShape.MatchString); t != "" {
		return t
	}
	return scriptureInText.FindString(doc.Text())
}

func extractPastor(doc *goquery.Document) string {
	if t := firstText(doc, pastorSelectors, func(s string) bool { return len([]rune(s)) < 50 }); t != "" {
		return t
	}
	if author, ok := doc.Find(`meta[name="author"]`).First().Attr("content"); ok {
		return strings.TrimSpace(author)
	}
	return ""
}

func extractChurch(doc *goquery.Document, rawURL string) string {
	if t := firstText(doc, churchSelectors, func(s string) bool { return len([]rune(s)) < 100 }); t != "" {
		return t
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return churchFromHost(u.Hostname())
}

// churchFromHost grace-church.or.kr -> Grace church
func churchFromHost(host string) string {
	host = hostPrefixStrip.ReplaceAllString(strings.ToLower(host), "")
	if suffix, _ := publicsuffix.PublicSuffix(host); suffix != "" && suffix != host {
		host = strings.TrimSuffix(host, "."+suffix)
	}
	name := strings.Split(host, ".")[0]
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToUpper(name[:1]) + name[1:]
}
