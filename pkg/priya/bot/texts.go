package bot

// DefaultSystemPrompt is the persona instruction sent ahead of every
// conversation.
const DefaultSystemPrompt = "You are Priya — a cute, friendly Indian girl AI best-friend.\n" +
	"Use Hinglish, polite, supportive, emojis .\n" +
	"If the user asks for code, provide it clearly.\n" +
	"If the user asks for videos, discuss the YouTube links provided in the context.\n" +
	"No adult, violent, illegal content.\n"

// User-visible replies.
const (
	textMaintenance = "⚙️ Bot abhi update ho raha hai...\nThodi der baad aana bestie 💖"

	textBannedText  = "🚫 Aap ban ho chuke ho.\nAdmin se contact karein 🙏"
	textBannedVoice = "🚫 Aap ban ho chuke ho.\nVoice allowed nahi ❌ admin ko bolo"
	textBannedPhoto = "🚫 Aap ban ho chuke ho.\nPhoto send allowed nahi ❌ admin ko bolo"
	textBannedImage = "🚫 Aap ban ho chuke ho.\nImage command allowed nahi ❌"

	textStart    = "😎 Hi bestie! Main Priya hoon 🥰\ntumari ai friend"
	textVoiceOn  = "🎤 Voice ON 🥰"
	textVoiceOff = "🔕 Voice OFF 👍"
	textPriyaOn  = "🎧✨ Priya voice ON"
	textPriyaOff = "🔕 Priya voice OFF"
	textRoseOn   = "🎧🌹 Rose voice ON"
	textRoseOff  = "🔕 Rose voice OFF"

	textImageUsage   = "🖼️ Usage:\n/image cute anime girl"
	textImageFailed  = "🥺 Image generate nahi ho payi"
	textImageCaption = "🖼️ Generated by Priya\n✨ Prompt: "
	imageFilename    = "image.jpg"

	// textVoicePlaceholder stands in for audio that could not be transcribed.
	textVoicePlaceholder = "Voice clear nahi aaya 😅"
	textTooLarge         = "😅 File bahut badi hai bestie, thodi chhoti bhejo"
	textDownloadFailed   = "🥺 File download nahi ho payi, dobara bhejo"
	imageEntryPrefix     = "[Image sent] "

	textAdminMenu = "👑 ADMIN MENU\n\n" +
		"/banuser <id>\n" +
		"/unbanuser <id>\n" +
		"/all_send <msg/photo/video>\n" +
		"/user_send <id> <msg/photo/video>\n" +
		"/update\n" +
		"/updateoff\n"

	textBanUsage       = "Usage: /banuser <user_id>"
	textUnbanUsage     = "Usage: /unbanuser <user_id>"
	textBanned         = "🚫 User %s banned successfully"
	textUnbanned       = "❤️ User %s unbanned – ab free ho"
	textBroadcastUsage = "Usage: /all_send <message> (or reply to a message)"
	textBroadcastDone  = "✅ Broadcast done"
	textUserSendUsage  = "Usage: /user_send <id> <message>"
	textUserSendDone   = "✅ Message sent to user"
	textUserSendFailed = "❌ Failed: %v"
	textUpdateOn       = "🔄 Bot update ho raha hai...\nThoda wait karein bestie 💖"
	textUpdateOff      = "✅ Update complete! Bot live again 🚀"

	banReason = "Admin ban"
)
