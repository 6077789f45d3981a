package normalize

// ComicVine API payloads. Only the fields the catalog provider reads are
// declared; the API returns many more.

// CVResponse is the envelope shared by every ComicVine API endpoint.
type CVResponse[T any] struct {
	StatusCode           int    `json:"status_code"`
	Error                string `json:"error"`
	NumberOfTotalResults int    `json:"number_of_total_results"`
	Results              T      `json:"results"`
}

// CVImage lists the image renditions of an issue or volume.
type CVImage struct {
	OriginalURL string `json:"original_url"`
	SuperURL    string `json:"super_url"`
	MediumURL   string `json:"medium_url"`
	SmallURL    string `json:"small_url"`
	ThumbURL    string `json:"thumb_url"`
}

// Best returns the largest rendition available.
func (img *CVImage) Best() string {
	if img == nil {
		return ""
	}
	for _, u := range []string{img.OriginalURL, img.SuperURL, img.MediumURL, img.SmallURL, img.ThumbURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// CVRef is a named reference to another resource.
type CVRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CVPerson is a person credit on an issue.
type CVPerson struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// CVVolume is a ComicVine volume, the catalog's notion of a series.
type CVVolume struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	StartYear     string    `json:"start_year"`
	Publisher     *CVRef    `json:"publisher"`
	Image         *CVImage  `json:"image"`
	SiteDetailURL string    `json:"site_detail_url"`
	CountOfIssues int       `json:"count_of_issues"`
	Concepts      []CVRef   `json:"concepts"`
	Issues        []CVIssue `json:"issues"`
}

// CVIssue is a ComicVine issue. The album_number, serie_name and cover_url
// aliases are accepted for records exported by other tools.
type CVIssue struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	IssueNumber      string     `json:"issue_number"`
	AlbumNumber      string     `json:"album_number"`
	SerieName        string     `json:"serie_name"`
	CoverURL         string     `json:"cover_url"`
	CoverDate        string     `json:"cover_date"`
	StoreDate        string     `json:"store_date"`
	Description      string     `json:"description"`
	Image            *CVImage   `json:"image"`
	Volume           *CVRef     `json:"volume"`
	SiteDetailURL    string     `json:"site_detail_url"`
	APIDetailURL     string     `json:"api_detail_url"`
	PersonCredits    []CVPerson `json:"person_credits"`
	CharacterCredits []CVRef    `json:"character_credits"`
}
