// Package scenario defines scripted session content: casts of inner-voice
// parts, seed graphs, and ordered milestone scripts with their structural
// graph rewrites. A registry makes scenarios available to new sessions by id.
package scenario
