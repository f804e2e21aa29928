package domain

// Merge rules for canonical records: an empty field is filled by any
// source, a populated field is replaced only by a strictly
// higher-priority source. With distinct per-provider priorities the
// result is independent of arrival order and of replays.

// MergeMatch folds an incoming sighting of a match into the existing
// canonical row and reports whether anything changed.
func MergeMatch(existing, incoming Match) (Match, bool) {
	out := existing
	overwrite := incoming.SourcePriority > existing.SourcePriority

	changed := mergeString(&out.ShareCode, incoming.ShareCode, overwrite)
	changed = mergeString(&out.MapName, incoming.MapName, overwrite) || changed
	changed = mergeString(&out.DemoURL, incoming.DemoURL, overwrite) || changed
	changed = mergeString(&out.GameType, incoming.GameType, overwrite) || changed
	changed = mergeInt(&out.ScoreTeam1, incoming.ScoreTeam1, overwrite) || changed
	changed = mergeInt(&out.ScoreTeam2, incoming.ScoreTeam2, overwrite) || changed
	changed = mergeInt(&out.WinningTeam, incoming.WinningTeam, overwrite) || changed

	if out.MatchDate.IsZero() && !incoming.MatchDate.IsZero() ||
		overwrite && !incoming.MatchDate.IsZero() && !incoming.MatchDate.Equal(out.MatchDate) {
		out.MatchDate = incoming.MatchDate
		changed = true
	}

	if incoming.SourcePriority > out.SourcePriority {
		out.SourcePriority = incoming.SourcePriority
		changed = true
	}
	return out, changed
}

// MergeMatchPlayer folds an incoming player line into the existing
// row for the same (match, steam id) pair.
func MergeMatchPlayer(existing, incoming MatchPlayer) (MatchPlayer, bool) {
	out := existing
	overwrite := incoming.SourcePriority > existing.SourcePriority

	changed := mergeString(&out.Name, incoming.Name, overwrite)
	changed = mergeInt(&out.Team, incoming.Team, overwrite) || changed
	changed = mergeInt(&out.Kills, incoming.Kills, overwrite) || changed
	changed = mergeInt(&out.Deaths, incoming.Deaths, overwrite) || changed
	changed = mergeInt(&out.Assists, incoming.Assists, overwrite) || changed
	changed = mergeInt(&out.Score, incoming.Score, overwrite) || changed
	changed = mergeInt(&out.Headshots, incoming.Headshots, overwrite) || changed
	changed = mergeInt(&out.MVPs, incoming.MVPs, overwrite) || changed
	changed = mergeFloat(&out.HeadshotPct, incoming.HeadshotPct, overwrite) || changed
	changed = mergeFloat(&out.ADR, incoming.ADR, overwrite) || changed
	changed = mergeFloat(&out.Rating, incoming.Rating, overwrite) || changed

	if incoming.SourcePriority > out.SourcePriority {
		out.SourcePriority = incoming.SourcePriority
		changed = true
	}
	return out, changed
}

func mergeString(dst *string, src string, overwrite bool) bool {
	if src == "" || src == *dst {
		return false
	}
	if *dst == "" || overwrite {
		*dst = src
		return true
	}
	return false
}

func mergeInt(dst *int, src int, overwrite bool) bool {
	if src == 0 || src == *dst {
		return false
	}
	if *dst == 0 || overwrite {
		*dst = src
		return true
	}
	return false
}

func mergeFloat(dst *float64, src float64, overwrite bool) bool {
	if src == 0 || src == *dst {
		return false
	}
	if *dst == 0 || overwrite {
		*dst = src
		return true
	}
	return false
}
