package game

// Fixed replies for the two non-scoring outcomes.
const (
	msgNoSuchTask    = "🌫 Heimdall squints into the mist... there is no such task."
	msgAlreadySolved = "🛡 You have already conquered this task. Seek the next one."
)

// outerQuotes are ambient replies for messages that carry no task context.
var outerQuotes = []string{
	"🐦 Huginn and Muninn heard you, but they carry no task in their claws.",
	"🍺 The mead hall echoes. Reply to a task if you seek glory.",
	"⚡ Thor grumbles in the distance. That was not an answer to anything.",
	"🌳 Yggdrasil rustles. Find a task before you speak of deeds.",
	"🚪 Valhalla's gates stay shut for idle chatter.",
}

// correctQuotes are replies for a right answer.
var correctQuotes = []string{
	"⚔️ A warrior's answer! Odin nods from his high seat.",
	"🏆 Skål! The skalds will sing of this.",
	"🔥 Right you are. The runes glow in your favor.",
	"🛡 Well struck! Another step on the road to Valhalla.",
	"🐺 Even Fenrir pauses, impressed.",
}

// wrongQuotes are replies for a wrong answer.
var wrongQuotes = []string{
	"😈 Loki laughs. That is not the answer.",
	"🌫 The mists of Niflheim cloud your mind. Try again.",
	"🪓 Your axe missed the mark this time.",
	"🐍 Jörmungandr hisses: wrong.",
	"❄️ Cold as Jötunheim, and just as wrong.",
}
