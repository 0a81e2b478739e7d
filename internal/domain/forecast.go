package domain

import (
	"time"
	_ "time/tzdata" // Central time must resolve in minimal images
)

const maxDailyForecasts = 7

// PairDailyForecasts folds NWS periods into up to seven day entries. A
// daytime period is joined with the night that follows it; a leading night
// period ("Tonight") stands alone with only a low.
func PairDailyForecasts(periods []ForecastPeriod) []DailyForecast {
	var out []DailyForecast
	for i := 0; i < len(periods) && len(out) < maxDailyForecasts; i++ {
		p := periods[i]
		if !p.IsDaytime {
			low := p.Temperature
			out = append(out, DailyForecast{
				Name:    p.Name,
				Low:     &low,
				Summary: p.ShortForecast,
				RainPct: p.PrecipChance,
			})
			continue
		}

		high := p.Temperature
		day := DailyForecast{
			Name:    p.Name,
			High:    &high,
			Summary: p.ShortForecast,
			RainPct: p.PrecipChance,
		}
		if i+1 < len(periods) && !periods[i+1].IsDaytime {
			night := periods[i+1]
			low := night.Temperature
			day.Low = &low
			day.NightNote = night.ShortForecast
			day.RainPct = maxPct(day.RainPct, night.PrecipChance)
			i++
		}
		out = append(out, day)
	}
	return out
}

// NearTermTemps reads the next high and low from the first two periods.
func NearTermTemps(periods []ForecastPeriod) (high, low *int) {
	for i := 0; i < len(periods) && i < 2; i++ {
		t := periods[i].Temperature
		if periods[i].IsDaytime {
			if high == nil {
				high = &t
			}
		} else if low == nil {
			low = &t
		}
	}
	return high, low
}

func maxPct(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

var central = mustLoadCentral()

func mustLoadCentral() *time.Location {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		panic("load America/Chicago: " + err.Error())
	}
	return loc
}

// Edition names the briefing by Central time of day.
func Edition(t time.Time) string {
	h := t.In(central).Hour()
	switch {
	case h >= 4 && h < 11:
		return "Morning"
	case h >= 11 && h < 17:
		return "Afternoon"
	default:
		return "Evening"
	}
}
