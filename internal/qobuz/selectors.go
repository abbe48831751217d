package qobuz

import "github.com/desertthunder/qbsync/internal/browser"

const (
	loginPath     = "/login"
	playlistsPath = "/my-profile/playlists"
	searchPath    = "/search"
)

// Login form.
var (
	emailInput = []browser.Selector{
		browser.CSS("#email"),
		browser.CSS("input[name='email']"),
		browser.CSS("input[type='email']"),
	}
	passwordInput = []browser.Selector{
		browser.CSS("#password"),
		browser.CSS("input[type='password']"),
	}
	submitButton = []browser.Selector{
		browser.XPath("//button[@type='submit']"),
	}
	// only rendered for a signed-in user
	loggedInMarker = []browser.Selector{
		browser.XPath("//div[contains(@class,'user-menu')]"),
		browser.XPath("//*[contains(@class,'user-menu')]"),
	}
)

// Playlist management page.
var (
	createPlaylistButton = []browser.Selector{
		browser.ContainsText("button", "Create playlist", "Create a playlist"),
		browser.XPath("//button[contains(@class,'create-playlist')]"),
		browser.ContainsText("a", "Create playlist", "Create a playlist"),
		browser.ContainsText("div", "Create playlist", "Create a playlist"),
	}
	playlistNameInput = []browser.Selector{
		browser.XPath("//input[@placeholder='Playlist name' or @placeholder='Name']"),
	}
	confirmCreateButton = []browser.Selector{
		browser.XPath("//button[contains(text(),'Create') and not(contains(text(),'Create playlist'))]"),
	}
	playlistHeader = []browser.Selector{
		browser.XPath("//div[contains(@class,'playlist-header')]"),
	}
	selectAllButton = []browser.Selector{
		browser.XPath("//button[contains(@class,'select-all')]"),
	}
	deleteButton = []browser.Selector{
		browser.XPath("//button[contains(@class,'delete') or contains(text(),'Delete')]"),
	}
	confirmButton = []browser.Selector{
		browser.XPath("//button[contains(text(),'OK') or contains(text(),'Confirm')]"),
	}
)

// Search results and the add-to-playlist menu.
var (
	trackItem     = browser.XPath("//div[contains(@class,'track-item')]")
	optionsButton = browser.XPath(".//button[contains(@class,'more-options') or contains(@class,'options')]").Within(trackItem)
	addToPlaylist = []browser.Selector{
		browser.ContainsText("li", "Add to playlist", "Add to a playlist"),
	}
)

// playlistEntry matches the playlist called name on the management page.
func playlistEntry(name string) []browser.Selector {
	return browser.ExactText(name, "div", "span", "a")
}

// dialogEntry matches the playlist called name in the add-to-playlist dialog.
func dialogEntry(name string) []browser.Selector {
	return browser.ExactText(name, "div", "span", "li")
}
