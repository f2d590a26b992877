package types

type XPAction string

const (
	ActionCreateActivity       XPAction = "create_activity"
	ActionConfirmPresence      XPAction = "confirm_presence"
	ActionParticipantConfirmed XPAction = "participant_confirmed"
	ActionCompleteActivity     XPAction = "complete_activity"
)

const (
	DEFAULT_XP_PER_LEVEL             = 100
	CREATE_ACTIVITY_XP               = 15
	CONFIRM_PRESENCE_XP              = 20
	PARTICIPANT_CONFIRMED_CREATOR_XP = 10
	COMPLETE_ACTIVITY_XP             = 30
)

// XPConfig holds the reward table and level size. Values are loaded from
// configuration; GetXPConfig returns the defaults.
type XPConfig struct {
	PerLevel int
	Rewards  map[XPAction]int
}

func GetXPConfig() XPConfig {
	return XPConfig{
		PerLevel: DEFAULT_XP_PER_LEVEL,
		Rewards: map[XPAction]int{
			ActionCreateActivity:       CREATE_ACTIVITY_XP,
			ActionConfirmPresence:      CONFIRM_PRESENCE_XP,
			ActionParticipantConfirmed: PARTICIPANT_CONFIRMED_CREATOR_XP,
			ActionCompleteActivity:     COMPLETE_ACTIVITY_XP,
		},
	}
}

// LevelFor returns floor(xp / PerLevel) + 1.
func (c XPConfig) LevelFor(xp int64) int {
	if xp < 0 || c.PerLevel <= 0 {
		return 1
	}
	return int(xp/int64(c.PerLevel)) + 1
}

func (c XPConfig) Reward(action XPAction) int {
	return c.Rewards[action]
}
