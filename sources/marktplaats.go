package sources

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"carscout/models"
)

// MarktplaatsParser extracts listings from a Marktplaats results page.
// Price text comes formatted with cents ("€ 11.950,00"); ads without an
// asking price show "Bieden" and are kept with price 0.
type MarktplaatsParser struct{}

func (p *MarktplaatsParser) Parse(markup []byte, criteria models.SearchCriteria) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("marktplaats: parse markup: %w", err)
	}

	var listings []models.RawListing
	doc.Find("li.hz-Listing").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Find("a.hz-Listing-coverLink").First().Attr("href")
		if href == "" {
			href, _ = sel.Find("a").First().Attr("href")
		}
		id := externalIDFromPath(href)
		if id == "" {
			return
		}

		listing := models.RawListing{
			ExternalID: id,
			Title:      cleanText(sel.Find("h3.hz-Listing-title").First().Text()),
			URL:        absoluteURL("https://www.marktplaats.nl", href),
			Snippet:    cleanText(sel.Find("p.hz-Listing-description").First().Text()),
		}

		priceText := sel.Find("span.hz-Listing-price").First().Text()
		if !strings.Contains(strings.ToLower(priceText), "bieden") {
			listing.Price = parseEuro(priceText)
		}

		sel.Find("span.hz-Attribute").Each(func(_ int, attr *goquery.Selection) {
			classifyAttribute(attr.Text(), &listing.Fuel, &listing.Gearbox, &listing.Year, &listing.Mileage)
		})

		listing.City = cleanText(sel.Find("span.hz-Listing-location, span.hz-Listing-distance-label").First().Text())
		if img, ok := sel.Find("img").First().Attr("src"); ok {
			listing.ImageURL = absoluteURL("https://www.marktplaats.nl", img)
		}

		if !withinCeiling(listing.Price, criteria) {
			return
		}
		listings = append(listings, listing)
	})

	return listings, nil
}

// externalIDFromPath pulls the ad id out of paths like
// /v/auto-s/peugeot/m2014567890-peugeot-208-1-2-puretech.
func externalIDFromPath(href string) string {
	if href == "" {
		return ""
	}
	parts := strings.Split(strings.Trim(href, "/"), "/")
	last := parts[len(parts)-1]
	if i := strings.Index(last, "-"); i > 0 {
		last = last[:i]
	}
	if len(last) < 2 || last[0] != 'm' {
		return ""
	}
	return last
}
