// Package metrics holds the pure derived-metric math shared by the
// persister, both aggregators, and the anomaly detector. Every ratio is
// guarded against division by zero: the fallback is the numerator, or
// zero when the numerator is also zero.
package metrics

import "tournament-stats/internal/domain"

// Ratio divides num by den, falling back to num when den is zero.
// kills=20, deaths=0 yields a K/D of 20, not a fault.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return num
	}
	return num / den
}

// Percent returns 100*part/whole, or 0 when whole is zero.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * part / whole
}

// Impact estimates round influence from kills and assists per round.
func Impact(kpr, apr float64) float64 {
	v := 2.13*kpr + 0.42*apr - 0.41
	if v < 0 {
		return 0
	}
	return v
}

// Rating combines KAST, KPR, DPR, impact and ADR into a single per-match
// performance number centered around 1.0.
func Rating(kast, kpr, dpr, impact, adr float64) float64 {
	v := 0.0073*kast + 0.3591*kpr - 0.5329*dpr + 0.2372*impact + 0.0032*adr + 0.1587
	if v < 0 {
		return 0
	}
	return v
}

// ComputeMatchDerived fills the derived fields of a per-match player row
// from its raw counters. Idempotent: running it again on the same counters
// produces the same values.
func ComputeMatchDerived(p *domain.PlayerMatchStats) {
	rounds := float64(p.RoundsPlayed)
	kills := float64(p.Kills)

	p.HSPercent = Percent(float64(p.Headshots), kills)
	p.Accuracy = Percent(float64(p.ShotsOnTarget), float64(p.ShotsFired))
	if rounds > 0 {
		p.ADR = float64(p.Damage) / rounds
	} else {
		p.ADR = 0
	}
	p.KAST = Percent(float64(p.KASTRounds), rounds)

	kpr := Ratio(kills, rounds)
	apr := Ratio(float64(p.Assists), rounds)
	dpr := Ratio(float64(p.Deaths), rounds)
	if rounds == 0 {
		kpr, apr, dpr = 0, 0, 0
	}
	p.Impact = Impact(kpr, apr)
	p.Rating = Rating(p.KAST, kpr, dpr, p.Impact, p.ADR)
}

// MVPComposite is the weighted sum over already-derived tournament
// metrics. ADR, KAST, HS% and clutch rate are normalized into the same
// scale as rating and K/D before weighting.
func MVPComposite(rating, kd, adr, kast, hsPercent, clutch1v1Rate float64) float64 {
	return 0.35*rating +
		0.20*kd +
		0.15*(adr/100) +
		0.15*(kast/100) +
		0.10*(hsPercent/100) +
		0.05*(clutch1v1Rate/100)
}

// WeightedMVPComposite multiplies the composite by min(matchesPlayed, 5),
// rewarding consistency while capping the benefit of volume.
func WeightedMVPComposite(composite float64, matchesPlayed int) float64 {
	weight := matchesPlayed
	if weight > 5 {
		weight = 5
	}
	return composite * float64(weight)
}
