// Package urltitle replies with the page title of the first link posted
// in a channel.
package urltitle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/MyelinBots/ircsdk/internal/event"
	"github.com/MyelinBots/ircsdk/internal/irc"
	"github.com/MyelinBots/ircsdk/internal/module"
)

const (
	fetchTimeout = 5 * time.Second
	maxBodySize  = 1 << 20
	maxTitleLen  = 300
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// ErrNoTitle is returned when a page has no usable <title>
var ErrNoTitle = errors.New("no title found")

type URLTitle struct {
	*module.Module

	sender module.Sender
	client *http.Client
	wg     sync.WaitGroup
}

// New creates the module. It reacts to any PRIVMSG, so it has no trigger word.
func New(bus *event.Bus, sender module.Sender) *URLTitle {
	u := &URLTitle{
		sender: sender,
		client: &http.Client{Timeout: fetchTimeout},
	}
	u.Module = module.New(bus, "", "", u)
	u.Logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "urltitle",
		ReportTimestamp: true,
	})
	return u
}

// WithHTTPClient replaces the client used to fetch pages
func (u *URLTitle) WithHTTPClient(c *http.Client) *URLTitle {
	u.client = c
	return u
}

// HandleCommand starts a lookup for the first link in a PRIVMSG. The fetch
// runs on its own goroutine so the connection keeps reading meanwhile.
func (u *URLTitle) HandleCommand(msg *irc.Message, cmd module.Command) error {
	if msg.Command != "PRIVMSG" {
		return nil
	}
	link := urlPattern.FindString(msg.Body)
	if link == "" {
		return nil
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				u.HandleError(msg, cmd, &module.Fault{Value: r, Stack: debug.Stack()})
			}
		}()
		if err := u.reply(msg, link); err != nil {
			u.HandleError(msg, cmd, err)
		}
	}()
	return nil
}

// Wait blocks until every lookup started so far has finished
func (u *URLTitle) Wait() {
	u.wg.Wait()
}

func (u *URLTitle) reply(msg *irc.Message, link string) error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	title, err := u.Fetch(ctx, link)
	if errors.Is(err, ErrNoTitle) {
		return nil
	}
	if err != nil {
		return err
	}
	return u.sender.Privmsg(module.ReplyTarget(msg), "Title: "+title)
}

func (u *URLTitle) HandleError(msg *irc.Message, cmd module.Command, err error) {
	u.Logger.Warn("Title lookup failed", "from", msg.Sender, "err", err)
}

// Fetch downloads link and returns its normalized page title. At most
// 1 MiB of the body is read.
func (u *URLTitle) Fetch(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", link, err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch %s: %s", link, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return "", ErrNoTitle
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", link, err)
	}
	return ExtractTitle(body)
}

// ExtractTitle returns the text of the first <title> element with runs of
// whitespace collapsed
func ExtractTitle(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	node := findTitle(doc)
	if node == nil {
		return "", ErrNoTitle
	}

	var sb strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}

	title := strings.Join(strings.Fields(sb.String()), " ")
	if title == "" {
		return "", ErrNoTitle
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen]) + "..."
	}
	return title, nil
}

func findTitle(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return n
	}
	// <title> inside inline <svg> is not the page title
	if n.Type == html.ElementNode && n.DataAtom == atom.Svg {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTitle(c); found != nil {
			return found
		}
	}
	return nil
}
