// Package types defines the records returned by the crates.io API.
package types

import "time"

// Meta carries pagination information.
type Meta struct {
	// Total is the total amount of results across all pages.
	Total uint64 `json:"total"`
}

// CrateLinks points at the API endpoints providing crate details.
type CrateLinks struct {
	OwnerTeam            string  `json:"owner_team"`
	OwnerUser            string  `json:"owner_user"`
	Owners               string  `json:"owners"`
	ReverseDependencies  string  `json:"reverse_dependencies"`
	VersionDownloads     string  `json:"version_downloads"`
	Versions             *string `json:"versions"`
}

// Crate is a package published to the registry.
type Crate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	Documentation string `json:"documentation"`
	Homepage      string `json:"homepage"`
	Repository    string `json:"repository"`

	Downloads       uint64  `json:"downloads"`
	RecentDownloads *uint64 `json:"recent_downloads"`

	// Categories and Keywords are not set when the crate was loaded via a
	// list query.
	Categories *[]string `json:"categories"`
	Keywords   *[]string `json:"keywords"`

	Versions         *[]uint64  `json:"versions"`
	MaxVersion       string     `json:"max_version"`
	MaxStableVersion *string    `json:"max_stable_version"`
	Links            CrateLinks `json:"links"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ExactMatch       *bool      `json:"exact_match"`
}

// CratesPage is one page of a crate listing.
type CratesPage struct {
	Crates     []Crate    `json:"crates"`
	Versions   []Version  `json:"versions"`
	Keywords   []Keyword  `json:"keywords"`
	Categories []Category `json:"categories"`
	Meta       Meta       `json:"meta"`
}

// VersionLinks points at the endpoints providing extra version data.
type VersionLinks struct {
	Dependencies     string `json:"dependencies"`
	VersionDownloads string `json:"version_downloads"`
}

// Version is a published version of a Crate.
type Version struct {
	CrateName  string              `json:"crate"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	DLPath     string              `json:"dl_path"`
	Downloads  uint64              `json:"downloads"`
	Features   map[string][]string `json:"features"`
	ID         uint64              `json:"id"`
	Num        string              `json:"num"`
	Yanked     bool                `json:"yanked"`
	License    string              `json:"license"`
	ReadmePath string              `json:"readme_path"`
	Links      VersionLinks        `json:"links"`
	CrateSize  *uint64             `json:"crate_size"`
	PublishedBy *User              `json:"published_by"`
}

// Category is a crate category.
type Category struct {
	Category    string    `json:"category"`
	CratesCount uint64    `json:"crates_cnt"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
}

// Keyword is a keyword registered on the registry.
type Keyword struct {
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	CratesCount uint64    `json:"crates_cnt"`
	CreatedAt   time.Time `json:"created_at"`
}

// CrateResponse is the full payload for a single-crate lookup.
type CrateResponse struct {
	Categories []Category `json:"categories"`
	Crate      Crate      `json:"crate"`
	Keywords   []Keyword  `json:"keywords"`
	Versions   []Version  `json:"versions"`
}

// Summary holds registry-wide information.
type Summary struct {
	JustUpdated             []Crate    `json:"just_updated"`
	MostDownloaded          []Crate    `json:"most_downloaded"`
	NewCrates               []Crate    `json:"new_crates"`
	MostRecentlyDownloaded  []Crate    `json:"most_recently_downloaded"`
	NumCrates               uint64     `json:"num_crates"`
	NumDownloads            uint64     `json:"num_downloads"`
	PopularCategories       []Category `json:"popular_categories"`
	PopularKeywords         []Keyword  `json:"popular_keywords"`
}

// VersionDownloads is download data for one crate version on one day.
// Date is in YYYY-MM-DD form.
type VersionDownloads struct {
	Date      string `json:"date"`
	Downloads uint64 `json:"downloads"`
	Version   uint64 `json:"version"`
}

// ExtraDownloads is download data that does not fit a particular version.
type ExtraDownloads struct {
	Date      string `json:"date"`
	Downloads uint64 `json:"downloads"`
}

// CrateDownloadsMeta carries additional download data.
type CrateDownloadsMeta struct {
	ExtraDownloads []ExtraDownloads `json:"extra_downloads"`
}

// CrateDownloads is download data for all versions of a crate.
type CrateDownloads struct {
	VersionDownloads []VersionDownloads `json:"version_downloads"`
	Meta             CrateDownloadsMeta `json:"meta"`
}

// User is a registry user.
type User struct {
	Avatar string `json:"avatar"`
	Email  string `json:"email"`
	ID     uint64 `json:"id"`
	Kind   string `json:"kind"`
	Login  string `json:"login"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// UserResponse wraps a single-user lookup.
type UserResponse struct {
	User User `json:"user"`
}

// Owners wraps the owners listing of a crate.
type Owners struct {
	Users []User `json:"users"`
}

// AuthorsMeta carries crate author names.
type AuthorsMeta struct {
	Names []string `json:"names"`
}

// AuthorsResponse is the wire payload of the authors endpoint.
type AuthorsResponse struct {
	Meta AuthorsMeta `json:"meta"`
}

// Authors lists the author names of a crate version.
type Authors struct {
	Names []string
}

// Dependency specifies a crate dependency and its features.
type Dependency struct {
	CrateID         string   `json:"crate_id"`
	DefaultFeatures bool     `json:"default_features"`
	Downloads       uint64   `json:"downloads"`
	Features        []string `json:"features"`
	ID              uint64   `json:"id"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	Req             string   `json:"req"`
	Target          *string  `json:"target"`
	VersionID       uint64   `json:"version_id"`
}

// Dependencies wraps the dependency listing of a crate version.
type Dependencies struct {
	Dependencies []Dependency `json:"dependencies"`
}

// ReverseDependency is a single dependent of a crate, joined with the
// version that declares it.
type ReverseDependency struct {
	CrateVersion Version
	Dependency   Dependency
}

// ReverseDependenciesResponse is the wire shape of the reverse dependency
// endpoint: dependencies and versions arrive as parallel lists keyed by
// version id.
type ReverseDependenciesResponse struct {
	Dependencies []Dependency `json:"dependencies"`
	Versions     []Version    `json:"versions"`
	Meta         Meta         `json:"meta"`
}

// ReverseDependencies is the joined list of dependents for a crate.
type ReverseDependencies struct {
	Dependencies []ReverseDependency
	Meta         Meta
}

// AddPage joins one wire page into the list, matching each dependency to
// the version that declares it.
func (r *ReverseDependencies) AddPage(page ReverseDependenciesResponse) {
	for _, dep := range page.Dependencies {
		for i := range page.Versions {
			if page.Versions[i].ID == dep.VersionID {
				r.Dependencies = append(r.Dependencies, ReverseDependency{
					CrateVersion: page.Versions[i],
					Dependency:   dep,
				})
			}
		}
	}
	r.Meta = page.Meta
}

// FullVersion is a version enriched with authors and dependencies.
type FullVersion struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DLPath     string
	Downloads  uint64
	Features   map[string][]string
	ID         uint64
	Num        string
	Yanked     bool
	License    string
	ReadmePath string
	Links      VersionLinks

	AuthorNames  []string
	Dependencies []Dependency
}

// FullCrate aggregates all available information for a crate: download
// stats, owners, reverse dependencies, and detailed version data.
type FullCrate struct {
	ID               string
	Name             string
	Description      string
	License          string
	Documentation    string
	Homepage         string
	Repository       string
	TotalDownloads   uint64
	MaxVersion       string
	MaxStableVersion *string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Categories          []Category
	Keywords            []Keyword
	Downloads           CrateDownloads
	Owners              []User
	ReverseDependencies ReverseDependencies

	Versions []FullVersion
}
