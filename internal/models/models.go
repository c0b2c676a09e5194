package models

import (
	"time"

	"github.com/cropcare-connect/cropcare/internal/preview"
	"github.com/cropcare-connect/cropcare/internal/scan"
)

// ScanSession is a hosted scan view and the session state machine behind it
type ScanSession struct {
	ID        string
	CreatedAt time.Time
	Session   *scan.Session
}

// ImageInfo describes the selected leaf photo
type ImageInfo struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	URL       string `json:"url"`
}

// ScanView is the JSON rendering of a hosted scan
type ScanView struct {
	ID        string       `json:"id"`
	Status    scan.Status  `json:"status"`
	Image     *ImageInfo   `json:"image,omitempty"`
	Preview   string       `json:"preview,omitempty"`
	CropType  string       `json:"crop_type,omitempty"`
	Result    *scan.Result `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewScanView renders the current state of s.
func NewScanView(s *ScanSession) ScanView {
	snap := s.Session.Snapshot()
	view := ScanView{
		ID:        s.ID,
		Status:    snap.Status,
		Preview:   snap.Preview,
		CropType:  snap.CropType,
		Result:    snap.Result,
		Error:     snap.Error,
		CreatedAt: s.CreatedAt,
	}
	if snap.Image != nil {
		view.Image = &ImageInfo{
			Name:      snap.Image.Name,
			MediaType: snap.Image.MediaType,
			Size:      snap.Image.Size(),
			URL:       "/api/scans/" + s.ID + "/image",
		}
		if w, h, err := preview.Dimensions(snap.Image.Data); err == nil {
			view.Image.Width, view.Image.Height = w, h
		}
	}
	return view
}
