package site

// Page is one rendered document produced from one source file.
type Page struct {
	Name       string
	Title      string
	Weight     int
	SourcePath string
	OutputPath string
	// Err is set when the page was discovered but could not be described,
	// for example a scanned source without a metadata header. The page still
	// gets a task, which fails with Err; it is left out of the menu.
	Err error
}

// MediaFile is a static asset copied verbatim into the output tree.
type MediaFile struct {
	SourcePath string
	OutputPath string
}

// Name returns the media path relative to the media root, used in task ids.
func (m MediaFile) Name(l Layout) string {
	rel, err := relativeTo(l.MediaDir, m.SourcePath)
	if err != nil {
		return m.SourcePath
	}
	return rel
}
