package store

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SaveGame is one persisted save slot: populations, upgrades and the full
// combat snapshot.
type SaveGame struct {
	gorm.Model
	Slot  string `json:"slot" gorm:"uniqueIndex;size:36"`
	Label string `json:"label" gorm:"size:128"`

	Tick       int    `json:"tick"`
	Honor      int64  `json:"honor"`
	BattleName string `json:"battleName" gorm:"size:64"`
	Memorial   string `json:"memorial" gorm:"size:64"`
	Active     bool   `json:"active"`
	RNGKind    string `json:"rngKind" gorm:"size:16"`

	ProbeCount       float64 `json:"probeCount"`
	DrifterCount     float64 `json:"drifterCount"`
	ProbesLostCombat float64 `json:"probesLostCombat"`
	DriftersKilled   float64 `json:"driftersKilled"`
	ProbeSpeed       float64 `json:"probeSpeed"`
	SpeedBonus       bool    `json:"speedBonus"`

	NamedBattles bool `json:"namedBattles"`
	Glory        bool `json:"glory"`

	Units       datatypes.JSON `json:"units"`
	Occurrences datatypes.JSON `json:"occurrences"`
	Snapshot    datatypes.JSON `json:"snapshot"`

	Battles []BattleRecord `json:"battles" gorm:"foreignKey:SaveGameID;constraint:OnDelete:CASCADE"`
}

func (*SaveGame) TableName() string {
	return "save_games"
}

// BattleRecord is one finished battle kept with its save.
type BattleRecord struct {
	gorm.Model
	SaveGameID uint `json:"saveGameId" gorm:"index"`

	Name           string  `json:"name" gorm:"size:64"`
	Outcome        string  `json:"outcome" gorm:"size:32"`
	Reason         string  `json:"reason" gorm:"size:32"`
	Description    string  `json:"description" gorm:"size:64"`
	Ticks          int     `json:"ticks"`
	LeftCap        int     `json:"leftCap"`
	RightCap       int     `json:"rightCap"`
	LeftLost       int     `json:"leftLost"`
	RightLost      int     `json:"rightLost"`
	ProbesLost     float64 `json:"probesLost"`
	DriftersKilled float64 `json:"driftersKilled"`
	HonorDelta     int64   `json:"honorDelta"`
}

func (*BattleRecord) TableName() string {
	return "battle_records"
}

// Models lists every table the store migrates.
var Models = []any{
	&SaveGame{},
	&BattleRecord{},
}
