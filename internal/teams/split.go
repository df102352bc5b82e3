package teams

import "club-events/internal/models"

// Split deals members into consecutive teams of at most size, in order. The
// first member of each team leads it. A trailing team smaller than half of
// size is folded into the one before it.
func Split(eventID string, members []models.TeamMember, size int) []models.Team {
	if size <= 0 || len(members) == 0 {
		return []models.Team{}
	}
	var groups [][]models.TeamMember
	for start := 0; start < len(members); start += size {
		end := start + size
		if end > len(members) {
			end = len(members)
		}
		groups = append(groups, append([]models.TeamMember(nil), members[start:end]...))
	}
	if n := len(groups); n > 1 && len(groups[n-1])*2 < size {
		groups[n-2] = append(groups[n-2], groups[n-1]...)
		groups = groups[:n-1]
	}

	out := make([]models.Team, 0, len(groups))
	for i, g := range groups {
		out = append(out, models.Team{
			EventID:    eventID,
			Number:     i + 1,
			LeaderID:   g[0].UserID,
			LeaderName: g[0].Name,
			Members:    g,
		})
	}
	return out
}
