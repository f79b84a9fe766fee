// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vocab

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// BUILT-IN VOCABULARIES
// =============================================================================

// Classic is the small colour/shape/pattern vocabulary.
func Classic() *Vocabulary {
	return MustNew(
		Category{Name: "colour", Terms: []string{"red", "yellow", "blue"}},
		Category{Name: "shape", Terms: []string{"circle", "triangle", "square"}},
		Category{Name: "pattern", Terms: []string{"stripe", "dot", "check"}},
	)
}

// Aesthetics is the art-world vocabulary laid out over three dashboard
// columns. Net art terms thanks to Jim Andrews.
func Aesthetics() *Vocabulary {
	return MustNew(
		Category{Name: "colours", Terms: split("black,white,grey,gray,red,orange,yellow,green,blue,purple,cyan,magenta,pink,brown,beige,violet,indigo")},
		Category{Name: "forms", Terms: split("point,line,circle,triangle,square,star,spiral,grid")},
		Category{Name: "media", ColumnBreak: true, Terms: split("painting,drawing,printmaking,sculpture,video art,sound art,performance art,installation art,digital art,conceptual art")},
		Category{Name: "net art", Terms: split("vaporwave,glitch,gif,cyberpunk,net art,ascii art,game art,locative media,code poetry,generative art")},
		Category{Name: "artists", ColumnBreak: true, Terms: split("Yayoi Kusama,Barbara Kruger,Richard Serra,Jeff Koons,Cindy Sherman,Ai Weiwei,Takashi Murakami,Marina Abramovic,Banksy,Damien Hirst")},
		Category{Name: "institutions", Terms: split("Tate,Getty,MOMA,ICA,LACMA,Prado,Louvre,Uffizi,Saatchi Gallery,Rijksmuseum")},
	)
}

var presets = map[string]func() *Vocabulary{
	"classic":    Classic,
	"aesthetics": Aesthetics,
}

// Preset returns a built-in vocabulary by name.
func Preset(name string) (*Vocabulary, error) {
	fn, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q (have %s)",
			ErrInvalid, name, strings.Join(PresetNames(), ", "))
	}
	return fn(), nil
}

// PresetNames lists the built-in vocabulary names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func split(csv string) []string {
	return strings.Split(csv, ",")
}
