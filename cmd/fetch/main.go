// Command fetch downloads Version 3 Z-machine story files from the IF
// Archive's zcode index, the one extension this interpreter can run.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const indexURL = "https://www.ifarchive.org/indexes/if-archive/games/zcode/"
const storyDir = "stories"

var z3Suffix = regexp.MustCompile(`\.z3$`)

// storyLink is one entry found in the archive's index page.
type storyLink struct {
	filename string
	url      string
}

func main() {
	if err := os.MkdirAll(storyDir, 0755); err != nil {
		fmt.Printf("Failed to create %s: %v\n", storyDir, err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	links, err := listStoryLinks(client)
	if err != nil {
		fmt.Printf("Failed to list stories: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d Version 3 story files\n", len(links))

	var got, already, lost int
	for i, link := range links {
		dest := filepath.Join(storyDir, link.filename)
		switch status, err := fetchOne(client, link, dest); {
		case status == fetchSkipped:
			fmt.Printf("[%d/%d] %s already present\n", i+1, len(links), link.filename)
			already++
		case err != nil:
			fmt.Printf("[%d/%d] %s failed: %v\n", i+1, len(links), link.filename, err)
			lost++
		default:
			fmt.Printf("[%d/%d] %s downloaded\n", i+1, len(links), link.filename)
			got++
			time.Sleep(100 * time.Millisecond)
		}
	}
	fmt.Printf("\nDone. %d downloaded, %d already present, %d failed.\n", got, already, lost)

	if err := writeManifest(links); err != nil {
		fmt.Printf("Failed to write manifest: %v\n", err)
	}
}

// listStoryLinks scrapes the archive's index page for every link ending in
// .z3.
func listStoryLinks(client *http.Client) ([]storyLink, error) {
	res, err := client.Get(indexURL)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close() // nolint:errcheck
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("bad status code: %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, err
	}

	var links []storyLink
	doc.Find("dl dt").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Find("a").Attr("href")
		if !exists || !z3Suffix.MatchString(href) {
			return
		}
		links = append(links, storyLink{
			filename: filepath.Base(href),
			url:      "https://www.ifarchive.org" + href,
		})
	})
	return links, nil
}

type fetchStatus int

const (
	fetchDownloaded fetchStatus = iota
	fetchSkipped
)

// fetchOne downloads link to dest, or reports fetchSkipped without
// touching the network if dest already exists.
func fetchOne(client *http.Client, link storyLink, dest string) (fetchStatus, error) {
	if _, err := os.Stat(dest); err == nil {
		return fetchSkipped, nil
	}

	resp, err := client.Get(link.url)
	if err != nil {
		return fetchDownloaded, err
	}
	defer resp.Body.Close() // nolint:errcheck
	if resp.StatusCode != 200 {
		return fetchDownloaded, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fetchDownloaded, err
	}
	return fetchDownloaded, os.WriteFile(dest, data, 0644)
}

// writeManifest records every known story filename, whether or not this
// run downloaded it, so a later run can diff against what's expected.
func writeManifest(links []storyLink) error {
	var manifest strings.Builder
	for _, link := range links {
		manifest.WriteString(link.filename + "\n")
	}
	path := filepath.Join(storyDir, "manifest.txt")
	if err := os.WriteFile(path, []byte(manifest.String()), 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote manifest to %s\n", path)
	return nil
}
