package capture

import (
	"fmt"

	"github.com/breeze-rmm/fbcgrab/internal/fbc"
)

// ProbeOutput is one output reported by the library.
type ProbeOutput struct {
	ID       uint32 `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Geometry string `yaml:"geometry" json:"geometry"`
}

// ProbeReport is the library's view of the system.
type ProbeReport struct {
	Display            string        `yaml:"display" json:"display"`
	ScreenWidth        int           `yaml:"screenWidth" json:"screenWidth"`
	ScreenHeight       int           `yaml:"screenHeight" json:"screenHeight"`
	ClientVersion      string        `yaml:"clientVersion" json:"clientVersion"`
	LibraryVersion     string        `yaml:"libraryVersion" json:"libraryVersion"`
	CapturePossible    bool          `yaml:"capturePossible" json:"capturePossible"`
	CurrentlyCapturing bool          `yaml:"currentlyCapturing" json:"currentlyCapturing"`
	CanCreateNow       bool          `yaml:"canCreateNow" json:"canCreateNow"`
	XRandRAvailable    bool          `yaml:"xrandrAvailable" json:"xrandrAvailable"`
	InModeset          bool          `yaml:"inModeset" json:"inModeset"`
	ToSys              bool          `yaml:"toSys" json:"toSys"`
	ToCUDA             bool          `yaml:"toCuda" json:"toCuda"`
	Outputs            []ProbeOutput `yaml:"outputs" json:"outputs"`
}

// Probe opens a handle only long enough to query the library status.
func Probe(opts Options, deps Deps) (*ProbeReport, error) {
	deps = deps.withDefaults()

	lib, err := deps.Loader.Load(fbc.LibraryName, fbc.ClientVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer func() {
		if err := lib.Unload(); err != nil {
			deps.Logger.Warn("cannot unload capture library", "error", err.Error())
		}
	}()

	disp, err := deps.Display.OpenDisplay(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExternal, err)
	}
	defer disp.Close()

	report := &ProbeReport{
		Display:       disp.Name(),
		ClientVersion: fbc.ClientVersion.String(),
		ToSys:         lib.Capabilities().ToSys,
		ToCUDA:        lib.Capabilities().ToCUDA,
	}
	report.ScreenWidth, report.ScreenHeight, err = disp.ScreenSize()
	if err != nil {
		return nil, fmt.Errorf("%w: query screen size: %w", ErrExternal, err)
	}

	h, st := lib.CreateHandle()
	if err := fbc.Translate("create handle", st, ""); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSession, err)
	}
	defer func() {
		if st := lib.DestroyHandle(h); st != fbc.StatusSuccess {
			err := fbc.Translate("destroy handle", st, "")
			deps.Logger.Warn("cannot destroy handle", "error", err.Error())
		}
	}()

	info, st := lib.GetStatus(h)
	if st != fbc.StatusSuccess {
		return nil, fmt.Errorf("%w: %w", ErrSession, fbc.Translate("get status", st, lib.LastError(h)))
	}

	report.LibraryVersion = info.LibraryVersion.String()
	report.CapturePossible = info.CapturePossible
	report.CurrentlyCapturing = info.CurrentlyCapturing
	report.CanCreateNow = info.CanCreateNow
	report.XRandRAvailable = info.XRandRAvailable
	report.InModeset = info.InModeset
	for _, o := range info.Outputs {
		report.Outputs = append(report.Outputs, ProbeOutput{ID: o.ID, Name: o.Name, Geometry: o.Box.String()})
	}
	return report, nil
}
