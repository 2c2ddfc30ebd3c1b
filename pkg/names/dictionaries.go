package names

var colors = []string{
	"amaranth", "amber", "amethyst", "apricot", "aqua", "aquamarine", "azure",
	"beige", "black", "blue", "blush", "bronze", "brown", "chocolate",
	"coffee", "copper", "coral", "crimson", "cyan", "emerald", "fuchsia",
	"gold", "gray", "green", "harlequin", "indigo", "ivory", "jade",
	"lavender", "lime", "magenta", "maroon", "moccasin", "olive", "orange",
	"peach", "pink", "plum", "purple", "red", "rose", "salmon", "sapphire",
	"scarlet", "silver", "tan", "teal", "tomato", "turquoise", "violet",
	"white", "yellow",
}

var animals = []string{
	"aardvark", "albatross", "alligator", "alpaca", "anaconda", "ant",
	"anteater", "antelope", "armadillo", "baboon", "badger", "barracuda",
	"bat", "bear", "beaver", "bee", "bison", "boar", "bobcat", "buffalo",
	"butterfly", "camel", "canary", "capybara", "caribou", "cat",
	"caterpillar", "cheetah", "chicken", "chimpanzee", "chinchilla",
	"chipmunk", "cobra", "cougar", "coyote", "crab", "crane", "crocodile",
	"crow", "deer", "dingo", "dolphin", "donkey", "dove", "dragonfly",
	"duck", "eagle", "eel", "elephant", "elk", "emu", "falcon", "ferret",
	"finch", "flamingo", "fox", "frog", "gazelle", "gecko", "gerbil",
	"gibbon", "giraffe", "gopher", "gorilla", "grasshopper", "grouse",
	"guineafowl", "hamster", "hare", "hawk", "hedgehog", "heron", "hippo",
	"hornet", "horse", "hummingbird", "hyena", "ibex", "iguana", "impala",
	"jackal", "jaguar", "jellyfish", "kangaroo", "kingfisher", "koala",
	"ladybug", "lemur", "leopard", "lion", "lizard", "llama", "lobster",
	"lynx", "macaw", "magpie", "manatee", "marmot", "meerkat", "mink",
	"mole", "mongoose", "monkey", "moose", "mouse", "narwhal", "newt",
	"ocelot", "octopus", "opossum", "orca", "ostrich", "otter", "owl",
	"panda", "panther", "parrot", "peacock", "pelican", "penguin",
	"pheasant", "pigeon", "platypus", "porcupine", "puffin", "puma",
	"quail", "rabbit", "raccoon", "raven", "reindeer", "rhinoceros",
	"salamander", "seahorse", "seal", "shark", "sheep", "skunk", "sloth",
	"snail", "sparrow", "squid", "squirrel", "starfish", "stingray",
	"swan", "tapir", "tiger", "toucan", "turtle", "walrus", "weasel",
	"whale", "wolf", "wolverine", "wombat", "woodpecker", "yak", "zebra",
}
