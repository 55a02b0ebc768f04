package config

// Spoken responses. Placeholders use fmt verbs.
const (
	MessageApology           = "We're sorry, we're experiencing technical difficulties. Please try your call again later. Goodbye."
	MessageNotConfigured     = "We're sorry, this number is not configured to receive calls. Goodbye."
	MessageDefaultGreeting   = "Thank you for calling %s. How can I help you today?"
	MessageRepromptEmpty     = "Sorry, I didn't catch that. Could you say that again?"
	MessageNoInputGoodbye    = "I'm sorry, I still couldn't hear you. Please call back anytime. Goodbye."
	MessageInvalidSelection  = "Sorry, that is not a valid selection. Goodbye."
	MessageMenuNoInput       = "We didn't receive a selection. Goodbye."
	MessageAIUnavailable     = "I'm sorry, I'm having trouble looking that up right now. Could you ask me again?"
	MessageToolUnavailable   = "That information is temporarily unavailable."
	MessageTransferConnect   = "Let me connect you with someone now. Please hold."
	MessageTransferFailed    = "I'm sorry, I wasn't able to connect you with anyone. Would you like to leave your name and number so someone can call you back?"
	MessageTransferSucceeded = "Thank you for calling. Goodbye."
	MessageFlowTransferFail  = "We're sorry, no one is available to take your call right now. Goodbye."
	MessageClosedLeadAsk     = "We're currently closed, but I'd be happy to take your information so someone can get back to you. May I have your name?"
	MessageOpenNoAnswer      = "I don't have an answer for that, but I can connect you with someone who does. Just say \"speak to someone\", or ask me something else."
	MessageAnythingElse      = "Is there anything else I can help you with?"
	MessageGoodbye           = "Thank you for calling. Have a great day. Goodbye."
	MessageWrapUpContinue    = "Sure, what else can I help you with?"
	MessageConfirmPrompt     = "No problem, I won't take your details. Did I answer everything you needed today?"
	MessageConfirmRetry      = "Sorry, was that a yes or a no? Did I answer everything you needed today?"
	MessageConfirmYes        = "Great. Is there anything else I can help you with?"
	MessageConfirmNo         = "Okay, what else can I help you with?"

	MessageAskName         = "May I have your name, please?"
	MessageAskPhone        = "Thanks, %s. What's the best phone number to reach you?"
	MessageAskEmail        = "And what's your email address?"
	MessageAskReason       = "Finally, can you briefly tell me the reason for your call?"
	MessageRetryName       = "Sorry, I didn't catch your name. Could you say it again?"
	MessageRetryPhone      = "Sorry, I didn't get a valid phone number. Please say the full number including area code."
	MessageRetryEmail      = "Sorry, I didn't get a valid email address. Could you spell it out for me?"
	MessageRetryReason     = "Could you tell me a little about why you're calling?"
	MessageLeadCaptured    = "Thank you, %s. I've passed your information along and someone will get back to you soon. Goodbye."
	MessageLeadCapturedAlt = "Thank you. I've passed your information along and someone will get back to you soon. Goodbye."

	MessageLeadConfirm      = "I heard: %s. Is that correct?"
	MessageLeadConfirmRetry = "Sorry, please say yes or no. I heard: %s. Is that correct?"
	MessageLeadReask        = "Okay, let's try that again."
	MessageLeadThanks       = "Thank you. We've received your information and will be in touch soon."
	MessageGatherInfoThanks = "Thank you."
	MessageVoicemailPrompt  = "Please leave a message after the tone. Press pound when you're finished."
	MessageVoicemailThanks  = "Thank you for your message. Goodbye."
)
