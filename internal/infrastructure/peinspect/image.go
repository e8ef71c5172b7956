package peinspect

import (
	"fmt"
	"strings"

	peparser "github.com/saferwall/pe"

	"lebinkproxy.dev/proxy/internal/core/scanner"
)

// DefaultSection holds the code the console patterns target
const DefaultSection = ".text"

// FileImage serves one section of an executable file to the scanner.
// Addresses are virtual addresses at the preferred image base.
type FileImage struct {
	Path    string
	Section string
}

var _ scanner.ImageSource = FileImage{}

// ModuleImage implements scanner.ImageSource
func (img FileImage) ModuleImage() (uintptr, []byte, error) {
	f, err := open(img.Path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	name := img.Section
	if name == "" {
		name = DefaultSection
	}

	for _, section := range f.Sections {
		if strings.TrimRight(string(section.Header.Name[:]), "\x00") != name {
			continue
		}
		data := section.Data(0, section.Header.SizeOfRawData, f)
		if len(data) == 0 {
			return 0, nil, fmt.Errorf("%s: section %s is empty", img.Path, name)
		}
		// copy out of the parser's buffer before Close
		image := append([]byte(nil), data...)
		return uintptr(imageBase(f)) + uintptr(section.Header.VirtualAddress), image, nil
	}
	return 0, nil, fmt.Errorf("%s: %w: %s", img.Path, ErrSectionNotFound, name)
}

func imageBase(f *peparser.File) uint64 {
	switch oh := f.NtHeader.OptionalHeader.(type) {
	case peparser.ImageOptionalHeader64:
		return oh.ImageBase
	case peparser.ImageOptionalHeader32:
		return uint64(oh.ImageBase)
	}
	return 0
}
