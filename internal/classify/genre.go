package classify

import (
	"strings"

	"github.com/JakeFAU/canadian-music-ledger/internal/release"
)

type genreAlias struct {
	tag   string
	genre release.Genre
}

// NormalizeGenre maps a raw source tag onto a canonical genre. Matching is
// case-insensitive on the trimmed tag; unmapped tags become Other.
func (t *Tables) NormalizeGenre(raw string) release.Genre {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return release.GenreOther
	}
	if g, ok := t.genres[key]; ok {
		return g
	}
	return release.GenreOther
}

// ClassifyTags maps the first tag to the primary genre and the rest to at most
// MaxSecondaryGenres distinct secondary genres, never Other and never the primary.
func (t *Tables) ClassifyTags(tags []string) (release.Genre, []release.Genre) {
	if len(tags) == 0 {
		return release.GenreOther, []release.Genre{}
	}
	primary := t.NormalizeGenre(tags[0])
	secondary := make([]release.Genre, 0, MaxSecondaryGenres)
	for _, tag := range tags[1:] {
		if len(secondary) == MaxSecondaryGenres {
			break
		}
		g := t.NormalizeGenre(tag)
		if g == release.GenreOther || g == primary || containsGenre(secondary, g) {
			continue
		}
		secondary = append(secondary, g)
	}
	return primary, secondary
}

func containsGenre(list []release.Genre, g release.Genre) bool {
	for _, existing := range list {
		if existing == g {
			return true
		}
	}
	return false
}

var genreAliases = []genreAlias{
	{"hip hop", release.GenreHipHop}, {"hip-hop", release.GenreHipHop}, {"rap", release.GenreHipHop},
	{"trap", release.GenreHipHop}, {"boom bap", release.GenreHipHop}, {"drill", release.GenreHipHop},
	{"conscious rap", release.GenreHipHop}, {"alternative hip hop", release.GenreHipHop},
	{"underground rap", release.GenreHipHop}, {"lo-fi hip hop", release.GenreHipHop},
	{"grime", release.GenreHipHop}, {"cloud rap", release.GenreHipHop}, {"gangsta rap", release.GenreHipHop},
	{"hip-hop/rap", release.GenreHipHop},

	{"house", release.GenreElectronic}, {"techno", release.GenreElectronic}, {"ambient", release.GenreElectronic},
	{"edm", release.GenreElectronic}, {"electronic", release.GenreElectronic}, {"electronica", release.GenreElectronic},
	{"synth-pop", release.GenreElectronic}, {"synthwave", release.GenreElectronic},
	{"drum and bass", release.GenreElectronic}, {"dubstep", release.GenreElectronic}, {"idm", release.GenreElectronic},
	{"downtempo", release.GenreElectronic}, {"chillwave", release.GenreElectronic}, {"lo-fi", release.GenreElectronic},
	{"vaporwave", release.GenreElectronic}, {"hyperpop", release.GenreElectronic}, {"glitch", release.GenreElectronic},
	{"uk garage", release.GenreElectronic}, {"trance", release.GenreElectronic}, {"electro", release.GenreElectronic},
	{"minimal techno", release.GenreElectronic}, {"dance", release.GenreElectronic},

	{"rock", release.GenreRock}, {"indie rock", release.GenreRock}, {"alternative rock", release.GenreRock},
	{"shoegaze", release.GenreRock}, {"post-rock", release.GenreRock}, {"hard rock", release.GenreRock},
	{"garage rock", release.GenreRock}, {"math rock", release.GenreRock}, {"psychedelic rock", release.GenreRock},
	{"prog rock", release.GenreRock}, {"noise rock", release.GenreRock}, {"dream pop", release.GenreRock},
	{"grunge", release.GenreRock}, {"new wave", release.GenreRock}, {"post-grunge", release.GenreRock},
	{"alternative", release.GenreRock},

	{"metal", release.GenreMetal}, {"heavy metal", release.GenreMetal}, {"death metal", release.GenreMetal},
	{"black metal", release.GenreMetal}, {"doom metal", release.GenreMetal}, {"metalcore", release.GenreMetal},
	{"thrash metal", release.GenreMetal}, {"sludge metal", release.GenreMetal},

	{"punk", release.GenrePunk}, {"punk rock", release.GenrePunk}, {"hardcore", release.GenrePunk},
	{"post-punk", release.GenrePunk}, {"emo", release.GenrePunk}, {"pop punk", release.GenrePunk},
	{"hardcore punk", release.GenrePunk}, {"skate punk", release.GenrePunk},

	{"pop", release.GenrePop}, {"indie pop", release.GenrePop}, {"chamber pop", release.GenrePop},
	{"art pop", release.GenrePop}, {"electropop", release.GenrePop}, {"bedroom pop", release.GenrePop},
	{"baroque pop", release.GenrePop}, {"bubblegum pop", release.GenrePop},

	{"folk", release.GenreFolk}, {"indie folk", release.GenreFolk}, {"singer-songwriter", release.GenreFolk},
	{"acoustic", release.GenreFolk}, {"freak folk", release.GenreFolk}, {"contemporary folk", release.GenreFolk},
	{"folk rock", release.GenreFolk}, {"neofolk", release.GenreFolk},

	{"country", release.GenreCountry}, {"alt-country", release.GenreCountry}, {"americana", release.GenreCountry},
	{"bluegrass", release.GenreCountry}, {"outlaw country", release.GenreCountry}, {"country rock", release.GenreCountry},

	{"jazz", release.GenreJazz}, {"free jazz", release.GenreJazz}, {"jazz fusion", release.GenreJazz},
	{"acid jazz", release.GenreJazz}, {"bebop", release.GenreJazz}, {"nu jazz", release.GenreJazz},
	{"contemporary jazz", release.GenreJazz}, {"latin jazz", release.GenreJazz},

	{"blues", release.GenreBlues}, {"electric blues", release.GenreBlues}, {"blues rock", release.GenreBlues},
	{"chicago blues", release.GenreBlues},

	{"classical", release.GenreClassical}, {"contemporary classical", release.GenreClassical},
	{"orchestral", release.GenreClassical}, {"chamber music", release.GenreClassical},
	{"minimalism", release.GenreClassical}, {"opera", release.GenreClassical},

	{"experimental", release.GenreExperimental}, {"avant-garde", release.GenreExperimental},
	{"noise", release.GenreExperimental}, {"drone", release.GenreExperimental}, {"improv", release.GenreExperimental},
	{"sound art", release.GenreExperimental},

	{"r&b", release.GenreRnBSoul}, {"rnb", release.GenreRnBSoul}, {"soul", release.GenreRnBSoul},
	{"neo soul", release.GenreRnBSoul}, {"funk", release.GenreRnBSoul}, {"gospel", release.GenreRnBSoul},
	{"contemporary r&b", release.GenreRnBSoul}, {"r&b/soul", release.GenreRnBSoul},

	{"reggae", release.GenreReggae}, {"dub", release.GenreReggae}, {"dancehall", release.GenreReggae},
	{"ska", release.GenreReggae},

	{"world", release.GenreWorld}, {"world music", release.GenreWorld}, {"afrobeat", release.GenreWorld},
	{"latin", release.GenreWorld}, {"cumbia", release.GenreWorld}, {"traditional", release.GenreWorld},
	{"indigenous", release.GenreWorld}, {"afropop", release.GenreWorld}, {"throat singing", release.GenreWorld},
	{"powwow", release.GenreWorld}, {"first nations", release.GenreWorld}, {"celtic", release.GenreWorld},
	{"francophone", release.GenreWorld},
}
