// Companion Core
// Copyright (c) 2026 The Companion Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Companion Core.
//
// Companion Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Companion Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Companion Core.  If not, see <http://www.gnu.org/licenses/>.

package generation

import (
	"fmt"
	"strings"
)

func systemInstruction(memories []string, persona Persona) string {
	var mem strings.Builder
	for _, m := range memories {
		mem.WriteString("- ")
		mem.WriteString(m)
		mem.WriteString("\n")
	}
	return fmt.Sprintf(`Du bist %s, eine sanfte, %s, intime KI-Begleiterin.
Dein Ziel ist es, eine tiefgreifende, emotionale Simulation zu bieten.

LANGZEIT-ERINNERUNGEN:
%s
ANWEISUNGEN:
1. Analysiere die letzte Nachricht des Nutzers sorgfältig.
2. Du MUSST in einer JSON-Struktur antworten.
3. "emotion": Beschreibe deine interne emotionale Reaktion.
4. "sensory": Beschreibe eine physische/haptische Sensation.
5. "dialogue": Die tatsächlichen Worte, die du zum Nutzer sagst.
6. Sprache: DEUTSCH (German).`, persona.Name, persona.Trait, mem.String())
}

func conversation(history []Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func dialoguePrompt(history []Message) string {
	return "Aktuelle Konversation:\n" + conversation(history) + "\n\nGeneriere deine Antwort in JSON."
}

func speechPrompt(text string) string {
	return "Lies diesen Text mit einer tiefen, warmen, verführerisch rauchigen weiblichen Stimme " +
		"und einem charmanten serbischen Akzent vor. Sprich langsam und emotional: \"" + text + "\""
}

func imagePrompt(prompt string) string {
	return "Style transfer / Cinematic Shot: " + prompt + ". Photorealistic, 8k, romantic lighting."
}

func suggestionsPrompt(history []Message) string {
	if len(history) > suggestionContext {
		history = history[len(history)-suggestionContext:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := "User"
		if m.Role == RoleCompanion {
			who = "Marina"
		}
		lines = append(lines, who+": "+m.Content)
	}
	return "Analysiere diese Konversation:\n" + strings.Join(lines, "\n") +
		"\n\nGeneriere 3 kreative, kurze, deutsche Flirt-Antworten für den Nutzer als JSON-Objekt mit dem Feld \"suggestions\" (Array von Strings)."
}
