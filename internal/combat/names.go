package combat

import (
	"fmt"
	"strconv"
)

const (
	// DefaultMemorial is the memorial string before any named battle is lost.
	DefaultMemorial = "Durenstein 1"
	threnodyPrefix  = "Threnody for the Heroes of "
)

// battleNames is the catalog drawn from once named battles are enabled.
var battleNames = []string{
	"Aboukir", "Abensberg", "Acre", "Alba de Tormes", "la Albuera", "Algeciras Bay",
	"Amstetten", "Arcis-sur-Aube", "Aspern-Essling", "Jena-Auerstedt", "Arcole",
	"Austerlitz", "Badajoz", "Bailen", "la Barrosa", "Bassano", "Bautzen", "Berezina",
	"Bergisel", "Borodino", "Burgos", "Bucaco", "Cadiz", "Caldiero", "Castiglione",
	"Castlebar", "Champaubert", "Chateau-Thierry", "Copenhagen", "Corunna", "Craonne",
	"Dego", "Dennewitz", "Dresden", "Durenstein", "Eckmuhl", "Elchingen",
	"Espinosa de los Monteros", "Eylau", "Cape Finisterre", "Friedland",
	"Fuentes de Onoro", "Gevora River", "Gerona", "Hamburg", "Haslach-Jungingen",
	"Heilsberg", "Hohenlinden", "Kaihona", "Kolberg", "Landshut", "Leipzig",
	"Ligny", "Lodi", "Lubeck", "Lutzen", "Marengo", "Maria", "Medellin",
	"Medina de Rioseco", "Millesimo", "Mincio River", "Mondovi", "Montebello",
	"Montenotte", "Montmirail", "Mount Tabor", "The Nile", "Novi", "Ocana",
	"Cape Ortegal", "Orthez", "Pancorbo", "Piave River", "The Pyramids",
	"Quatre Bras", "Raab", "Raszyn", "Rivoli", "Rolica", "La Rothiere", "Rovereto",
	"Saalfeld", "Schongrabern", "Salamanca", "Smolensk", "Somosierra", "Talavera",
	"Tamames", "Trafalgar", "Trebbia", "Tudela", "Ulm", "Valls", "Valmaseda",
	"Valutino", "Vauchamps", "Vimeiro", "Vitoria", "Wagram", "Waterloo", "Wavre",
	"Wertingen", "Zaragoza",
}

// MaxBattleNameLen bounds every display name: the longest catalog entry, a
// space and a 32-bit occurrence counter.
var MaxBattleNameLen = longestBattleName() + 1 + len(strconv.FormatUint(uint64(^uint32(0)), 10))

// MaxThrenodyLen bounds ThrenodyTitle.
var MaxThrenodyLen = len(threnodyPrefix) + MaxBattleNameLen

// BattleNames returns a copy of the catalog.
func BattleNames() []string {
	out := make([]string, len(battleNames))
	copy(out, battleNames)
	return out
}

func longestBattleName() int {
	longest := 0
	for _, n := range battleNames {
		if len(n) > longest {
			longest = len(n)
		}
	}
	return longest
}

// Namer hands out battle display names and keeps the memorial of the most
// recent loss.
type Namer struct {
	LastID      uint32            // numeric ids issued while named battles are off
	Occurrences map[string]uint32 // catalog name -> times used
	Current     string
	Memorial    string
}

// NewNamer returns a namer with the default memorial.
func NewNamer() *Namer {
	return &Namer{
		Occurrences: make(map[string]uint32, len(battleNames)),
		Memorial:    DefaultMemorial,
	}
}

// Next generates the name for a new battle. With named battles off it is the
// next numeric id; otherwise a uniformly drawn catalog name suffixed with its
// occurrence count.
func (n *Namer) Next(named bool, src Source) string {
	if !named {
		n.LastID++
		n.Current = strconv.FormatUint(uint64(n.LastID), 10)
		return n.Current
	}
	if n.Occurrences == nil {
		n.Occurrences = make(map[string]uint32, len(battleNames))
	}
	idx := clampInt(int(src.FloatNoBest()*float64(len(battleNames))), 0, len(battleNames)-1)
	name := battleNames[idx]
	n.Occurrences[name]++
	n.Current = fmt.Sprintf("%s %d", name, n.Occurrences[name])
	return n.Current
}

// Memorialize records the current name as the most recent loss.
func (n *Namer) Memorialize() {
	if n.Current != "" {
		n.Memorial = n.Current
	}
}

// ThrenodyTitle is the memorial line for the most recent loss.
func (n *Namer) ThrenodyTitle() string {
	return threnodyPrefix + n.Memorial
}
