// Package hook builds and maintains the in-page network interception
// script. The script wraps the page's fetch and XMLHttpRequest so the
// appointment-days API response is inspected inside the page itself: the
// notification fires from page JavaScript, with no round-trip through the
// Go process, and keeps working even if the driver connection degrades.
package hook

import (
	"encoding/json"
	"fmt"
)

// Config carries everything the in-page script needs. It is serialized
// into the script verbatim, so it must stay JSON-encodable.
type Config struct {
	// TargetSubstring identifies the appointment-days API endpoint within
	// a response URL.
	TargetSubstring string `json:"targetSubstring"`
	// NotifyURL receives a fire-and-forget GET when slots are available.
	NotifyURL string `json:"notifyUrl"`
	// RefreshURL is where the page navigates after the reload delay.
	RefreshURL string `json:"refreshUrl"`
	// StartDate and EndDate bound the acceptable slot dates (YYYY-MM-DD,
	// both inclusive). Empty strings disable filtering.
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	// ReloadAfterMs schedules the next page reload this many milliseconds
	// after a target response is seen.
	ReloadAfterMs int64 `json:"reloadAfterMs"`
}

// Script renders the interception script for the given config. The script
// is idempotent: a guard flag makes re-evaluation on a page that already
// carries the hook a no-op, so the supervisor can reinstall blindly.
func Script(cfg Config) (string, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode hook config: %w", err)
	}
	return fmt.Sprintf(scriptTemplate, encoded), nil
}

// scriptTemplate is the interception script with a %s slot for the JSON
// config. The availability logic mirrors the slots package: inclusive
// [start 00:00:00, end 23:59:59] bounds, unparseable dates excluded,
// malformed payloads never availability.
const scriptTemplate = `(() => {
    if (window.__APPT_HOOK_INSTALLED__) {
        return 'already-installed';
    }
    window.__APPT_HOOK_INSTALLED__ = true;

    const cfg = %s;

    const parseDate = (s) => {
        const d = new Date(s + 'T00:00:00');
        return isNaN(d.getTime()) ? null : d;
    };

    const analyseAvailability = (body) => {
        let days;
        try {
            const payload = JSON.parse(body);
            days = payload.ScheduleDays;
        } catch (e) {
            return false;
        }
        if (!Array.isArray(days) || days.length === 0) {
            return false;
        }
        if (!cfg.startDate || !cfg.endDate) {
            return true;
        }
        const start = parseDate(cfg.startDate);
        const end = parseDate(cfg.endDate);
        if (!start || !end) {
            return false;
        }
        end.setHours(23, 59, 59, 999);
        return days.some((day) => {
            const d = parseDate(day.Date);
            return d && d >= start && d <= end;
        });
    };

    const handleBody = (url, body) => {
        if (!url || url.indexOf(cfg.targetSubstring) === -1) {
            return;
        }
        console.log('[appt-hook] schedule-days response intercepted');
        if (analyseAvailability(body)) {
            console.log('[appt-hook] slots available, notifying');
            fetch(cfg.notifyUrl, { mode: 'no-cors' }).catch(() => {});
        } else {
            console.log('[appt-hook] no matching slots');
        }
        setTimeout(() => {
            window.location.href = cfg.refreshUrl;
        }, cfg.reloadAfterMs);
    };

    const origFetch = window.fetch;
    window.fetch = function (...args) {
        return origFetch.apply(this, args).then((response) => {
            try {
                const url = response.url || String(args[0]);
                if (url.indexOf(cfg.targetSubstring) !== -1) {
                    response.clone().text().then((body) => handleBody(url, body)).catch(() => {});
                }
            } catch (e) {}
            return response;
        });
    };

    const origOpen = XMLHttpRequest.prototype.open;
    XMLHttpRequest.prototype.open = function (method, url, ...rest) {
        this.__apptHookURL = String(url);
        return origOpen.call(this, method, url, ...rest);
    };

    const origSend = XMLHttpRequest.prototype.send;
    XMLHttpRequest.prototype.send = function (...args) {
        this.addEventListener('load', () => {
            try {
                handleBody(this.__apptHookURL, this.responseText);
            } catch (e) {}
        });
        return origSend.apply(this, args);
    };

    console.log('[appt-hook] installed');
    return 'installed';
})()`
