package types

type Download struct {
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
}

// VersionMetadata is the subset of a game version's metadata JSON used to
// locate its jars and official mappings.
type VersionMetadata struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	ReleaseTime string              `json:"releaseTime"`
	Downloads   map[string]Download `json:"downloads"`
}

// DownloadItem pairs an artifact with the local file it is stored in.
type DownloadItem struct {
	Download Download
	Dest     string
}
