package losslessscaling

import (
	"encoding/xml"
	"fmt"
	"os"
)

// profileDoc mirrors Lossless Scaling's profiles.xml: a flat list of named
// profiles, each a list of key/value settings.
type profileDoc struct {
	XMLName  xml.Name       `xml:"Profiles"`
	Profiles []xmlProfile   `xml:"Profile"`
}

type xmlProfile struct {
	Name     string        `xml:"Name,attr"`
	Settings []xmlSetting  `xml:"Settings>Setting"`
}

type xmlSetting struct {
	Key   string `xml:"Key,attr"`
	Value string `xml:"Value,attr"`
}

const (
	defaultProfileName = "Default"
	vibeshineProfile   = "Vibeshine"

	keyAutoScale      = "AutoScale"
	keyAutoScaleDelay = "AutoScaleDelay"
	keyLSFG3Target    = "LSFG3Target"
)

func (d *xmlProfile) get(key string) (string, bool) {
	for _, s := range d.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

func (d *xmlProfile) set(key, value string) {
	for i, s := range d.Settings {
		if s.Key == key {
			d.Settings[i].Value = value
			return
		}
	}
	d.Settings = append(d.Settings, xmlSetting{Key: key, Value: value})
}

func findProfile(doc *profileDoc, name string) *xmlProfile {
	for i := range doc.Profiles {
		if doc.Profiles[i].Name == name {
			return &doc.Profiles[i]
		}
	}
	return nil
}

func loadProfileDoc(path string) (*profileDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("losslessscaling: read profiles.xml: %w", err)
	}
	var doc profileDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("losslessscaling: parse profiles.xml: %w", err)
	}
	return &doc, nil
}

func saveProfileDoc(path string, doc *profileDoc) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("losslessscaling: marshal profiles.xml: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("losslessscaling: write profiles.xml: %w", err)
	}
	return os.Rename(tmp, path)
}

// ApplyProfile writes/updates the Vibeshine profile on the default
// profile's settings in profiles.xml at path, returning a Backup of the
// three values it overwrote on the default profile (AutoScale,
// AutoScaleDelay, LSFG3Target).
func ApplyProfile(path string, opts Options) (Backup, error) {
	doc, err := loadProfileDoc(path)
	if err != nil {
		return Backup{}, err
	}

	def := findProfile(doc, defaultProfileName)
	if def == nil {
		doc.Profiles = append(doc.Profiles, xmlProfile{Name: defaultProfileName})
		def = findProfile(doc, defaultProfileName)
	}

	backup := Backup{}
	backup.AutoScale, _ = def.get(keyAutoScale)
	backup.AutoScaleDelay, _ = def.get(keyAutoScaleDelay)
	backup.LSFG3Target, _ = def.get(keyLSFG3Target)

	def.set(keyAutoScale, "true")
	def.set(keyAutoScaleDelay, "0")
	if opts.TargetFPS > 0 {
		def.set(keyLSFG3Target, fmt.Sprintf("%d", opts.TargetFPS))
	}

	vibeshine := findProfile(doc, vibeshineProfile)
	if vibeshine == nil {
		doc.Profiles = append(doc.Profiles, xmlProfile{Name: vibeshineProfile})
		vibeshine = findProfile(doc, vibeshineProfile)
	}
	vibeshine.set("ScalingType", opts.ScalingType)
	vibeshine.set("FlowScale", fmt.Sprintf("%d", opts.FlowScale))
	vibeshine.set("ResolutionScale", fmt.Sprintf("%d", opts.ResolutionScale))
	vibeshine.set("Sharpening", fmt.Sprintf("%d", opts.Sharpening))
	vibeshine.set("PerformanceMode", fmt.Sprintf("%t", opts.PerformanceMode))
	vibeshine.set("Anime4KSize", opts.Anime4KSize)
	vibeshine.set("Anime4KVRS", fmt.Sprintf("%t", opts.Anime4KVRS))
	vibeshine.set("RTSSLimit", fmt.Sprintf("%t", opts.RTSSLimit))

	if err := saveProfileDoc(path, doc); err != nil {
		return Backup{}, err
	}
	return backup, nil
}

// RestoreProfile writes backup's values back onto the default profile.
func RestoreProfile(path string, backup Backup) error {
	doc, err := loadProfileDoc(path)
	if err != nil {
		return err
	}
	def := findProfile(doc, defaultProfileName)
	if def == nil {
		return nil
	}
	def.set(keyAutoScale, backup.AutoScale)
	def.set(keyAutoScaleDelay, backup.AutoScaleDelay)
	def.set(keyLSFG3Target, backup.LSFG3Target)
	return saveProfileDoc(path, doc)
}
